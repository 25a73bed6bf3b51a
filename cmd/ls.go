package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/pkg/app"
	"github.com/deploymenttheory/go-efiboot/pkg/app/inspect"
)

// volumeIndex selects a volume for ls and find; negative means the boot volume
var volumeIndex int

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory on a volume",
	Long: `List a directory on the boot volume or a volume selected by index.
Paths use backslash separators and are relative to the volume root.

Examples:
  # List the root of the boot volume
  go-efiboot ls

  # List \EFI\BOOT on the second volume
  go-efiboot ls '\EFI\BOOT' --volume 1`,

	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return runList(path)
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().IntVar(&volumeIndex, "volume", -1, "volume index (default: boot volume)")
}

func runList(path string) error {
	ctx, _, err := newFirmwareContext(false)
	if err != nil {
		return err
	}

	request := &inspect.ListRequest{
		Target: app.VolumeTarget{Index: volumeIndex, Path: path},
	}
	response, err := inspect.HandleList(ctx, request)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(os.Stdout, response, GetOutputFormat())
}
