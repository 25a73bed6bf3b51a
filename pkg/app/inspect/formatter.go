package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes a response in the given format: table, json or yaml
func FormatOutput(w io.Writer, response any, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats results as a table
func formatTable(w io.Writer, response any) error {
	switch r := response.(type) {
	case *MemoryMapResponse:
		return formatMemoryMapTable(w, r)
	case *AcpiResponse:
		return formatAcpiTable(w, r)
	case *ListResponse:
		return formatListTable(w, r)
	case *FindResponse:
		return formatFindTable(w, r)
	default:
		return fmt.Errorf("no table format for %T", response)
	}
}

func formatMemoryMapTable(w io.Writer, r *MemoryMapResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "#\tTYPE\tPHYS START\tPAGES\tATTR\n")
	fmt.Fprintf(tw, "-\t----\t----------\t-----\t----\n")
	for _, d := range r.Descriptors {
		fmt.Fprintf(tw, "%d\t%s\t0x%016x\t0x%x\t0x%x\n", d.Index, d.Type, d.PhysicalStart, d.Pages, d.Attribute)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nMap size %d bytes, descriptor size %d, version %d, key 0x%x\n",
		r.MapSize, r.DescriptorSize, r.DescriptorVersion, r.MapKey)
	fmt.Fprintf(w, "Conventional memory: %s, highest address 0x%x\n",
		formatBytes(r.Summary.ConventionalBytes), r.Summary.HighestAddress)
	if r.Defect != "" {
		fmt.Fprintf(w, "Warning: %s\n", r.Defect)
	}
	return nil
}

func formatAcpiTable(w io.Writer, r *AcpiResponse) error {
	fmt.Fprintf(w, "Firmware: %s (UEFI %s)\n\n", r.FirmwareVendor, r.Revision)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tGUID\tNAME\tADDRESS\n")
	fmt.Fprintf(tw, "-\t----\t----\t-------\n")
	for _, t := range r.Tables {
		fmt.Fprintf(tw, "%d\t%s\t%s\t0x%x\n", t.Index, t.GUID, t.Name, t.Address)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if r.Match != nil {
		fmt.Fprintf(w, "Table %s (%s) is entry %d at 0x%x\n", r.Match.GUID, r.Match.Name, r.Match.Index, r.Match.Address)
	}
	if !r.RSDP.Found {
		fmt.Fprintln(w, "System has no RSDP.")
		return nil
	}
	fmt.Fprintf(w, "RSDP %s found in table %d at 0x%x\n", r.RSDP.Version, r.RSDP.Index, r.RSDP.Address)
	return nil
}

func formatListTable(w io.Writer, r *ListResponse) error {
	fmt.Fprintf(w, "Directory of %s on %s\n\n", r.Path, r.Volume)
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "Directory is empty.")
		return nil
	}

	// Sort entries by name for consistent output
	entries := make([]EntryResult, len(r.Entries))
	copy(entries, r.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSIZE\tATTR\tMODIFIED\n")
	fmt.Fprintf(tw, "----\t----\t----\t--------\n")
	var files, dirs int
	var total uint64
	for _, e := range entries {
		size := formatBytes(e.Size)
		if e.Directory {
			size = "<DIR>"
			dirs++
		} else {
			files++
			total += e.Size
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, size, e.Attributes, e.Modified.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d file(s) %s, %d dir(s)\n", files, formatBytes(total), dirs)
	return nil
}

func formatFindTable(w io.Writer, r *FindResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", r.Path)
	fmt.Fprintf(tw, "Volume:\t%s\n", r.Volume)
	fmt.Fprintf(tw, "Size:\t%d (%s)\n", r.Entry.Size, formatBytes(r.Entry.Size))
	fmt.Fprintf(tw, "Physical size:\t%d\n", r.Entry.PhysicalSize)
	fmt.Fprintf(tw, "Attributes:\t%s\n", r.Entry.Attributes)
	fmt.Fprintf(tw, "Modified:\t%s\n", r.Entry.Modified.Format("2006-01-02 15:04:05"))
	return tw.Flush()
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// formatBytes formats byte count as human readable
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
