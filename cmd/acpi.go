package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efiboot/pkg/app/inspect"
)

var acpiTable string

var acpiCmd = &cobra.Command{
	Use:   "acpi",
	Short: "List configuration tables and locate the ACPI root pointer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, err := newFirmwareContext(false)
		if err != nil {
			return err
		}
		response, err := inspect.HandleAcpi(ctx, &inspect.AcpiRequest{Table: acpiTable})
		if err != nil {
			return err
		}
		return inspect.FormatOutput(os.Stdout, response, GetOutputFormat())
	},
}

func init() {
	rootCmd.AddCommand(acpiCmd)

	acpiCmd.Flags().StringVar(&acpiTable, "table", "", "look up one table by GUID or name (\"ACPI 2.0\", \"SMBIOS\")")
}
