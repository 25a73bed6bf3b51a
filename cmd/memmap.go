package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/pkg/app/inspect"
)

var memmapType string

var memmapCmd = &cobra.Command{
	Use:   "memmap",
	Short: "Print the firmware memory map",
	Long: `Take a memory map snapshot and print every descriptor.

Examples:
  # Print the whole map
  go-efiboot memmap

  # Only conventional memory, as JSON
  go-efiboot memmap --type ConventionalMemory -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMemmap()
	},
}

func init() {
	rootCmd.AddCommand(memmapCmd)
	memmapCmd.Flags().StringVarP(&memmapType, "type", "t", "", "only show descriptors of this memory type")
}

func runMemmap() error {
	ctx, _, err := newFirmwareContext(false)
	if err != nil {
		return err
	}

	response, err := inspect.HandleMemoryMap(ctx, &inspect.MemoryMapRequest{Type: memmapType})
	if err != nil {
		return err
	}
	return inspect.FormatOutput(os.Stdout, response, GetOutputFormat())
}
