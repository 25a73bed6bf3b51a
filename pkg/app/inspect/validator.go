package inspect

import (
	"strings"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/services"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Validate validates a memory map request
func (r *MemoryMapRequest) Validate() error {
	if r.Type == "" {
		return nil
	}
	if _, err := types.ParseMemoryType(r.Type); err != nil {
		return efierrors.Wrap(efierrors.New(efierrors.CodeInvalidParameter, err.Error()), "invalid memory type filter")
	}
	return nil
}

// knownTables are the identifiers a table may be requested by name.
var knownTables = []types.GUID{
	types.Acpi20TableGUID,
	types.AcpiTableGUID,
	types.SmbiosTableGUID,
	types.Smbios3TableGUID,
}

// Validate validates a configuration table request
func (r *AcpiRequest) Validate() error {
	if r.Table == "" {
		return nil
	}
	if _, err := r.TableGUID(); err != nil {
		return err
	}
	return nil
}

// TableGUID resolves Table to an identifier.
func (r *AcpiRequest) TableGUID() (types.GUID, error) {
	if guid, err := types.ParseGUID(r.Table); err == nil {
		return guid, nil
	}
	for _, guid := range knownTables {
		if strings.EqualFold(services.KnownTableName(guid), strings.TrimSpace(r.Table)) {
			return guid, nil
		}
	}
	return types.GUID{}, efierrors.Newf(efierrors.CodeInvalidParameter, "%q is neither a GUID nor a known table name", r.Table)
}

// Validate validates a listing request
func (r *ListRequest) Validate() error {
	return r.Target.Validate()
}

// Validate validates a find request
func (r *FindRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return efierrors.New(efierrors.CodeInvalidParameter, "file name is required")
	}
	if strings.IndexByte(r.Name, 0) >= 0 {
		return efierrors.New(efierrors.CodeInvalidParameter, "file name contains NUL")
	}
	return nil
}
