package inspect

import (
	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/services"
	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// HandleMemoryMap takes a memory map snapshot and decodes it
func HandleMemoryMap(ctx *app.Context, req *MemoryMapRequest) (*MemoryMapResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var filter types.MemoryType
	filtered := req.Type != ""
	if filtered {
		filter, _ = types.ParseMemoryType(req.Type)
	}

	snapshot, err := services.NewMemoryMapService(ctx).GetSnapshot()
	if err != nil {
		return nil, efierrors.Wrap(err, "failed to read memory map")
	}
	defer snapshot.Release()

	response := &MemoryMapResponse{
		MapSize:           snapshot.Size(),
		MapKey:            snapshot.Key(),
		DescriptorSize:    snapshot.DescriptorSize(),
		DescriptorVersion: snapshot.DescriptorVersion(),
		Descriptors:       []DescriptorResult{},
	}

	it := snapshot.Iterator()
	for it.Next() {
		d := it.Descriptor()
		if filtered && d.Type != filter {
			continue
		}
		response.Descriptors = append(response.Descriptors, DescriptorResult{
			Index:         it.Index(),
			Type:          d.Type.String(),
			PhysicalStart: d.PhysicalStart,
			VirtualStart:  d.VirtualStart,
			Pages:         d.NumberOfPages,
			Attribute:     d.Attribute,
			Bytes:         d.Size(),
		})
	}
	if err := it.Err(); err != nil {
		response.Defect = err.Error()
	}

	summary, _ := services.SummarizeMemoryMap(snapshot)
	response.Summary = MemorySummary{
		Descriptors:       summary.Descriptors,
		PagesByType:       make(map[string]uint64, len(summary.PagesByType)),
		ConventionalBytes: summary.ConventionalBytes,
		HighestAddress:    summary.HighestAddress,
	}
	for memType, pages := range summary.PagesByType {
		response.Summary.PagesByType[memType.String()] = pages
	}

	ctx.Log("memory map decoded")
	return response, nil
}

// HandleAcpi lists the configuration tables and locates the ACPI root pointer.
// A requested table that is not published is NotFound.
func HandleAcpi(ctx *app.Context, req *AcpiRequest) (*AcpiResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tables := ctx.System.ConfigurationTables()
	locator := services.NewConfigTableService()

	response := &AcpiResponse{
		Revision:       ctx.System.Header().RevisionString(),
		FirmwareVendor: ctx.System.FirmwareVendor(),
		Tables:         make([]TableResult, 0, len(tables)),
	}
	for i, table := range tables {
		response.Tables = append(response.Tables, TableResult{
			Index:   i,
			GUID:    table.VendorGUID.String(),
			Name:    services.KnownTableName(table.VendorGUID),
			Address: table.Table,
		})
	}

	location := locator.FindAcpiRoot(tables)
	response.RSDP = RSDPResult{Found: location.Found(), Version: location.Priority.String(), Index: -1}
	if entry, ok := location.Table(tables); ok {
		response.RSDP.Index = location.Index
		response.RSDP.Address = entry.Table
	}

	if req.Table != "" {
		guid, _ := req.TableGUID()
		index, ok := locator.FindTable(tables, guid)
		if !ok {
			return nil, efierrors.Newf(efierrors.CodeNotFound, "no configuration table %s", guid)
		}
		match := response.Tables[index]
		response.Match = &match
	}
	return response, nil
}

// HandleList lists a directory on a volume
func HandleList(ctx *app.Context, req *ListRequest) (*ListResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	nav := services.NewNavigator(ctx)
	defer nav.Close()

	if err := openTarget(nav, req.Target); err != nil {
		return nil, err
	}

	response := &ListResponse{
		Volume:  req.Target.String(),
		Path:    nav.WorkingDirectory().Path(),
		Entries: []EntryResult{},
	}
	it := nav.List()
	defer it.Close()
	for it.Next() {
		response.Entries = append(response.Entries, newEntryResult(it.Entry()))
	}
	if err := it.Err(); err != nil {
		return nil, efierrors.Wrapf(err, "failed to list %s", response.Path)
	}
	return response, nil
}

// HandleFind locates a file relative to the target directory
func HandleFind(ctx *app.Context, req *FindRequest) (*FindResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	nav := services.NewNavigator(ctx)
	defer nav.Close()

	if err := openTarget(nav, req.Target); err != nil {
		return nil, err
	}

	file, err := nav.OpenFile(req.Name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Info()
	if err != nil {
		return nil, efierrors.Wrapf(err, "failed to read information for %s", req.Name)
	}
	return &FindResponse{
		Volume: req.Target.String(),
		Path:   file.Path(),
		Entry:  newEntryResult(info),
	}, nil
}

func openTarget(nav *services.Navigator, target app.VolumeTarget) error {
	var err error
	if target.IsBootVolume() {
		_, err = nav.OpenRoot()
	} else {
		_, err = nav.OpenRootByIndex(target.Index)
	}
	if err != nil {
		return efierrors.Wrapf(err, "failed to open %s", target.String())
	}
	if target.Path == "" || target.Path == `\` {
		return nil
	}
	return nav.SetWorkingDirectory(target.Path)
}
