// File: internal/interfaces/acpi.go
package interfaces

import (
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// ConfigTableLocator finds entries in the firmware configuration table list
type ConfigTableLocator interface {
	// FindAcpiRoot locates the ACPI root pointer, preferring 2.0 over 1.0
	FindAcpiRoot(tables []types.ConfigurationTable) types.RSDPLocation

	// FindTable returns the index of the first entry with the given identifier
	FindTable(tables []types.ConfigurationTable, guid types.GUID) (int, bool)
}
