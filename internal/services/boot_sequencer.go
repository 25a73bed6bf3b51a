package services

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/config"
	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// CountdownResult is how the countdown ended.
type CountdownResult int

const (
	// CountdownSkipped means no countdown was configured.
	CountdownSkipped CountdownResult = iota
	// CountdownElapsed means every second passed without a key.
	CountdownElapsed
	// CountdownStopped means the stop key was pressed.
	CountdownStopped
	// CountdownContinued means another key was pressed.
	CountdownContinued
)

func (r CountdownResult) String() string {
	switch r {
	case CountdownElapsed:
		return "elapsed"
	case CountdownStopped:
		return "stopped"
	case CountdownContinued:
		return "continued"
	default:
		return "skipped"
	}
}

const memoryMapHeader = "#   Memory Type                Phys Addr Start   Num Of Pages   Attr\r\n"

// BootReport records what the sequence observed.
type BootReport struct {
	Time             types.Time
	Countdown        CountdownResult
	SecondsRemaining int
	Revision         string
	FirmwareVendor   string
	TableCount       int
	RSDP             types.RSDPLocation
	MemoryMap        MemoryMapSummary
	Listing          []types.FileInfo
	Kernel           *types.FileInfo
}

// BootSequencer runs the fixed boot pipeline. The first fatal step reports
// its status on the console, waits for a key and ends the run.
type BootSequencer struct {
	ctx       *app.Context
	cfg       config.BootConfig
	memoryMap interfaces.MemoryMapReader
	tables    interfaces.ConfigTableLocator
	files     *Navigator
	log       logrus.FieldLogger
	report    BootReport
}

// NewBootSequencer creates a sequencer over the context's firmware.
func NewBootSequencer(ctx *app.Context, cfg config.BootConfig) *BootSequencer {
	return &BootSequencer{
		ctx:       ctx,
		cfg:       cfg,
		memoryMap: NewMemoryMapService(ctx),
		tables:    NewConfigTableService(),
		files:     NewNavigator(ctx),
		log:       ctx.Logger.WithField("component", "boot"),
	}
}

// Report returns what the last Run observed.
func (b *BootSequencer) Report() BootReport { return b.report }

// Run executes every step in order and stops at the first failure.
func (b *BootSequencer) Run() error {
	defer func() {
		if err := b.files.Close(); err != nil {
			b.log.WithError(err).Warn("failed to close working directory")
		}
	}()

	steps := []struct {
		name string
		run  func() error
	}{
		{"console", b.initConsole},
		{"time", b.printTime},
		{"countdown", b.countdown},
		{"environment", b.printEnvironment},
		{"configuration tables", b.printConfigTables},
		{"memory map", b.printMemoryMap},
		{"files", b.inspectFiles},
	}

	for _, step := range steps {
		b.log.WithField("step", step.name).Debug("running boot step")
		if err := step.run(); err != nil {
			b.log.WithError(err).WithField("step", step.name).Error("boot step failed")
			return err
		}
	}
	b.log.Info("boot sequence complete")
	return nil
}

// fatal reports err the way the firmware prints a status, waits for a key
// and returns err.
func (b *BootSequencer) fatal(err error, message string) error {
	b.ctx.RecordError(err)
	b.ctx.Printf("[ %s ] - %s\r\n", efierrors.StatusOf(err).String(), message)
	b.waitForKey()
	return efierrors.Wrap(err, message)
}

func (b *BootSequencer) check(status types.Status, operation, message string) error {
	if err := b.ctx.Record(status, operation); err != nil {
		return b.fatal(err, message)
	}
	return nil
}

// waitForKey blocks until a key is pressed and returns it.
func (b *BootSequencer) waitForKey() types.InputKey {
	conIn := b.ctx.System.ConIn()
	index, status := b.ctx.BootServices().WaitForEvent([]types.Event{conIn.WaitForKey()})
	if status.IsError() {
		b.log.WithField("status", status.String()).Warn("key wait failed")
		return types.InputKey{}
	}
	if index != 0 {
		return types.InputKey{}
	}
	key, status := conIn.ReadKeyStroke()
	if status.IsError() {
		b.log.WithField("status", status.String()).Warn("key read failed")
	}
	return key
}

func (b *BootSequencer) pause() {
	if b.cfg.PauseBetweenSteps {
		b.waitForKey()
	}
}

func (b *BootSequencer) initConsole() error {
	conOut := b.ctx.System.ConOut()
	if err := b.check(conOut.ClearScreen(), "ClearScreen", "Failed to clear screen"); err != nil {
		return err
	}
	if status := conOut.SetAttribute(types.TextAttr(types.TextLightGray, types.TextBlack)); status.IsError() {
		b.log.WithField("status", status.String()).Warn("failed to set text attribute")
	}
	b.ctx.Printf("Hello, world\r\n")
	return nil
}

func (b *BootSequencer) printTime() error {
	now, status := b.ctx.RuntimeServices().GetTime()
	if err := b.check(status, "GetTime", "Failed to get time"); err != nil {
		return err
	}
	b.report.Time = now
	b.ctx.Printf("%s\r\n\r\n", now.String())
	return nil
}

// countdown counts down one second at a time. The timer is armed for each
// second, cancelled as soon as the wait returns and closed on every exit.
func (b *BootSequencer) countdown() error {
	remaining := b.cfg.CountdownSeconds
	if remaining <= 0 {
		b.report.Countdown = CountdownSkipped
		return nil
	}

	bs := b.ctx.BootServices()
	conIn := b.ctx.System.ConIn()
	stop := b.cfg.StopRune()

	timer, status := bs.CreateEvent(types.EventTimer, types.TPLCallback)
	if err := b.check(status, "CreateEvent", "Failed to create timer event"); err != nil {
		return err
	}
	defer func() {
		if status := bs.CloseEvent(timer); status.IsError() {
			b.log.WithField("status", status.String()).Warn("failed to close timer event")
		}
	}()

	result := CountdownElapsed
	for remaining > 0 {
		b.ctx.Printf("Continuing in %d, press '%c' to stop timer or press any other key to continue. \r", remaining, stop)

		if err := b.check(bs.SetTimer(timer, types.TimerRelative, types.TimerTicksPerSec), "SetTimer", "Error setting timer event"); err != nil {
			return err
		}

		index, waitStatus := bs.WaitForEvent([]types.Event{conIn.WaitForKey(), timer})
		if status := bs.SetTimer(timer, types.TimerCancel, 0); status.IsError() {
			b.log.WithField("status", status.String()).Warn("failed to cancel timer")
		}

		if waitStatus.IsError() && waitStatus != types.StatusTimeout {
			return b.fatal(b.ctx.Record(waitStatus, "WaitForEvent"), "Error waiting for events")
		}
		if waitStatus == types.StatusSuccess && index == 0 {
			key, status := conIn.ReadKeyStroke()
			if err := b.check(status, "ReadKeyStroke", "Error reading keystroke"); err != nil {
				return err
			}
			if key.Rune() == stop {
				result = CountdownStopped
				b.ctx.Printf("\r\nTimer stopped.\r\n")
				b.waitForKey()
			} else {
				result = CountdownContinued
				b.ctx.Printf("\r\n")
				if err := b.check(conIn.Reset(false), "Reset", "Error resetting input buffer"); err != nil {
					return err
				}
			}
			break
		}

		remaining--
	}

	if remaining == 0 {
		b.ctx.Printf("\r\n")
	}
	b.ctx.Printf("\r\n")

	b.report.Countdown = result
	b.report.SecondsRemaining = remaining
	b.log.WithFields(logrus.Fields{"result": result.String(), "remaining": remaining}).Debug("countdown finished")
	return nil
}

func (b *BootSequencer) printEnvironment() error {
	system := b.ctx.System
	header := system.Header()

	b.ctx.Printf("EFI System Table Info\r\n   Signature: 0x%x\r\n", header.Signature)
	if b.cfg.DebugTableInfo {
		b.ctx.Printf("   UEFI Revision: 0x%08x\r\n   Header Size: %d Bytes\r\n   CRC32: 0x%08x\r\n   Reserved: 0x%x\r\n",
			header.Revision, header.HeaderSize, header.CRC32, header.Reserved)
	} else {
		b.ctx.Printf("   UEFI Revision: %s\r\n", header.RevisionString())
	}
	b.ctx.Printf("   Firmware Vendor: %s\r\n   Firmware Revision: 0x%08x\r\n\r\n", system.FirmwareVendor(), system.FirmwareRevision())

	tables := system.ConfigurationTables()
	b.ctx.Printf("%d system configuration tables are available.\r\n", len(tables))

	b.report.Revision = header.RevisionString()
	b.report.FirmwareVendor = system.FirmwareVendor()
	b.report.TableCount = len(tables)
	b.pause()
	return nil
}

func (b *BootSequencer) printConfigTables() error {
	tables := b.ctx.System.ConfigurationTables()
	for i, table := range tables {
		b.ctx.Printf("Table %d GUID: %s\r\n", i, table.VendorGUID.String())
	}

	location := b.tables.FindAcpiRoot(tables)
	switch location.Priority {
	case types.RSDPV2:
		b.ctx.Printf("RSDP 2.0 found!\r\n")
	case types.RSDPV1:
		b.ctx.Printf("RSDP 1.0 found!\r\n")
	default:
		b.ctx.Printf("System has no RSDP.\r\n")
	}
	if location.Found() {
		b.log.WithFields(logrus.Fields{"version": location.Priority.String(), "index": location.Index}).Info("ACPI root pointer located")
	}

	b.report.RSDP = location
	b.pause()
	return nil
}

func (b *BootSequencer) printMemoryMap() error {
	snapshot, err := b.memoryMap.GetSnapshot()
	if err != nil {
		return b.fatal(err, "Failed to get memory map")
	}
	defer func() {
		if err := snapshot.Release(); err != nil {
			b.log.WithError(err).Warn("failed to release memory map")
		}
	}()

	b.ctx.Printf("MemMapSize: %d, MemMapDescriptorSize: %d, MemMapDescriptorVersion: 0x%x\r\n",
		snapshot.Size(), snapshot.DescriptorSize(), snapshot.DescriptorVersion())

	it := snapshot.Iterator()
	line := 0
	for it.Next() {
		if b.cfg.PageLines > 0 && line%b.cfg.PageLines == 0 {
			if b.cfg.PauseOnPage {
				b.waitForKey()
			}
			b.ctx.Printf(memoryMapHeader)
		}
		d := it.Descriptor()
		b.ctx.Printf("%2d: %-26s 0x%016x 0x%x 0x%x\r\n", line, d.Type.String(), d.PhysicalStart, d.NumberOfPages, d.Attribute)
		line++
	}
	if err := it.Err(); err != nil {
		b.log.WithError(err).Warn("memory map contains unknown descriptor types")
	}

	summary, err := SummarizeMemoryMap(snapshot)
	if err != nil {
		b.log.WithError(err).Debug("summary includes unknown descriptor types")
	}
	b.report.MemoryMap = summary

	b.ctx.Printf("\r\nDone printing memmap\r\n")
	b.pause()
	return nil
}

// inspectFiles lists the configured working directory and locates the
// kernel image. Nothing is loaded.
func (b *BootSequencer) inspectFiles() error {
	if b.cfg.WorkingDirectory == "" && b.cfg.KernelPath == "" {
		return nil
	}

	if b.cfg.FileSystemIndex >= 0 {
		if _, err := b.files.OpenRootByIndex(b.cfg.FileSystemIndex); err != nil {
			return b.fatal(err, "Failed to open file system")
		}
	}

	if b.cfg.WorkingDirectory != "" {
		if err := b.files.SetWorkingDirectory(b.cfg.WorkingDirectory); err != nil {
			return b.fatal(err, "Failed to set working directory")
		}
		b.ctx.Printf("Directory of %s\r\n", b.files.WorkingDirectory().Path())

		it := b.files.List()
		for it.Next() {
			entry := it.Entry()
			b.report.Listing = append(b.report.Listing, entry)
			b.ctx.Printf("%s\r\n", FormatDirectoryEntry(entry))
		}
		if err := it.Err(); err != nil {
			return b.fatal(err, "Failed to list directory")
		}
	}

	if b.cfg.KernelPath != "" {
		file, err := b.files.OpenFile(b.cfg.KernelPath)
		if err != nil {
			return b.fatal(err, "Failed to find kernel")
		}
		info, err := file.Info()
		if closeErr := file.Close(); closeErr != nil {
			b.log.WithError(closeErr).Warn("failed to close kernel file")
		}
		if err != nil {
			return b.fatal(err, "Failed to read kernel information")
		}
		b.report.Kernel = &info
		b.ctx.Printf("Kernel %s: %d bytes\r\n", info.FileName, info.FileSize)
	}

	b.pause()
	return nil
}

// FormatDirectoryEntry renders one listing line: modification time, size or
// <DIR>, and name.
func FormatDirectoryEntry(entry types.FileInfo) string {
	size := "<DIR>"
	if !entry.IsDirectory() {
		size = strconv.FormatUint(entry.FileSize, 10)
	}
	t := entry.ModificationTime
	return fmt.Sprintf("%02d/%02d/%04d  %02d:%02d  %12s  %s", t.Month, t.Day, t.Year, t.Hour, t.Minute, size, entry.FileName)
}
