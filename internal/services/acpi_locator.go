package services

import (
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// ConfigTableService scans the firmware configuration table list.
type ConfigTableService struct{}

// Compile-time check to ensure ConfigTableService implements ConfigTableLocator
var _ interfaces.ConfigTableLocator = (*ConfigTableService)(nil)

// NewConfigTableService creates a configuration table locator
func NewConfigTableService() *ConfigTableService {
	return &ConfigTableService{}
}

// FindAcpiRoot walks the list once. The first ACPI 2.0 entry wins outright;
// otherwise the first ACPI 1.0 entry is reported. An absent root pointer is
// not an error.
func (s *ConfigTableService) FindAcpiRoot(tables []types.ConfigurationTable) types.RSDPLocation {
	location := types.RSDPLocation{Priority: types.RSDPNone}
	for i, table := range tables {
		switch table.VendorGUID {
		case types.Acpi20TableGUID:
			return types.RSDPLocation{Priority: types.RSDPV2, Index: i}
		case types.AcpiTableGUID:
			if location.Priority == types.RSDPNone {
				location = types.RSDPLocation{Priority: types.RSDPV1, Index: i}
			}
		}
	}
	return location
}

// FindTable returns the index of the first entry published under guid.
func (s *ConfigTableService) FindTable(tables []types.ConfigurationTable, guid types.GUID) (int, bool) {
	for i, table := range tables {
		if table.VendorGUID == guid {
			return i, true
		}
	}
	return -1, false
}

// KnownTableName returns a short name for well-known configuration table
// identifiers, or an empty string.
func KnownTableName(guid types.GUID) string {
	switch guid {
	case types.Acpi20TableGUID:
		return "ACPI 2.0"
	case types.AcpiTableGUID:
		return "ACPI 1.0"
	case types.SmbiosTableGUID:
		return "SMBIOS"
	case types.Smbios3TableGUID:
		return "SMBIOS 3.0"
	default:
		return ""
	}
}
