package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/pkg/app"
	"github.com/deploymenttheory/go-efiboot/pkg/app/inspect"
)

var findDir string

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Locate a file on a volume",
	Long: `Open a file relative to a directory and print its information record.

Examples:
  # Locate the kernel on the boot volume
  go-efiboot find 'boot\kernel.elf'

  # Locate a file inside \EFI\BOOT on volume 0
  go-efiboot find BOOTX64.EFI --dir '\EFI\BOOT' --volume 0`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFind(args[0])
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().StringVar(&findDir, "dir", "", "directory to search from")
	findCmd.Flags().IntVar(&volumeIndex, "volume", -1, "volume index (default: boot volume)")
}

func runFind(name string) error {
	ctx, _, err := newFirmwareContext(false)
	if err != nil {
		return err
	}

	request := &inspect.FindRequest{
		Target: app.VolumeTarget{Index: volumeIndex, Path: findDir},
		Name:   name,
	}
	response, err := inspect.HandleFind(ctx, request)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(os.Stdout, response, GetOutputFormat())
}
