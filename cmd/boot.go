package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/internal/services"
)

var (
	bootCountdown  int
	bootWorkingDir string
	bootKernel     string
	bootDebugInfo  bool
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run the boot sequence against the emulated firmware",
	Long: `Run the fixed boot sequence: console setup, time query, countdown,
environment summary, configuration tables and ACPI root pointer, memory map,
then the optional working directory listing and kernel lookup.

Examples:
  # Boot with the default machine, pressing 's' to stop the countdown
  go-efiboot boot --keys s

  # Skip the countdown and list the EFI directory of the boot volume
  go-efiboot boot --countdown 0 --dir '\EFI\BOOT'`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("countdown") {
			cfg.Boot.CountdownSeconds = bootCountdown
		}
		if cmd.Flags().Changed("dir") {
			cfg.Boot.WorkingDirectory = bootWorkingDir
		}
		if cmd.Flags().Changed("kernel") {
			cfg.Boot.KernelPath = bootKernel
		}
		if cmd.Flags().Changed("debug-info") {
			cfg.Boot.DebugTableInfo = bootDebugInfo
		}
		return runBoot()
	},
}

func init() {
	rootCmd.AddCommand(bootCmd)

	bootCmd.Flags().IntVar(&bootCountdown, "countdown", 10, "countdown length in seconds, 0 to skip")
	bootCmd.Flags().StringVar(&bootWorkingDir, "dir", "", "working directory to list after the memory map")
	bootCmd.Flags().StringVar(&bootKernel, "kernel", "", "kernel path to locate")
	bootCmd.Flags().BoolVar(&bootDebugInfo, "debug-info", false, "print the raw system table header")
}

func runBoot() error {
	ctx, machine, err := newFirmwareContext(true)
	if err != nil {
		return err
	}

	sequencer := services.NewBootSequencer(ctx, cfg.Boot)
	runErr := sequencer.Run()

	report := sequencer.Report()
	logger.WithFields(logrus.Fields{
		"countdown":   report.Countdown.String(),
		"rsdp":        report.RSDP.Priority.String(),
		"descriptors": report.MemoryMap.Descriptors,
		"virtual":     machine.Now(),
		"pools":       machine.OutstandingPools(),
		"files":       machine.OpenFiles(),
		"status":      ctx.LastStatus().String(),
	}).Debug("boot finished")
	return runErr
}
