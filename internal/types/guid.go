package types

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// GUID is a 128-bit identifier in firmware wire order.
// The first three fields are stored little endian, the last eight bytes as-is,
// so the byte layout differs from the RFC 4122 form used by uuid.UUID.
// Reference: Appendix A
type GUID [16]byte

// GUIDSize is the size in bytes of an encoded GUID.
const GUIDSize = 16

// GUIDFromUUID converts an RFC 4122 UUID to firmware wire order.
func GUIDFromUUID(u uuid.UUID) GUID {
	var g GUID
	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(g[8:], u[8:])
	return g
}

// ParseGUID parses the canonical registry form, e.g. "8868e871-e4f1-11d3-bc22-0080c73c8881".
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return GUIDFromUUID(u), nil
}

// MustParseGUID is ParseGUID for package-level constants.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

// UUID returns the RFC 4122 form of the identifier.
func (g GUID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(g[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(g[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(g[6:8]))
	copy(u[8:], g[8:])
	return u
}

// String returns the canonical lower-case registry form.
func (g GUID) String() string {
	return g.UUID().String()
}

// Well-known identifiers consumed by the loader.
var (
	// Acpi20TableGUID identifies the ACPI 2.0+ RSDP configuration table.
	// Reference: section 4.6.1.1
	Acpi20TableGUID = MustParseGUID("8868e871-e4f1-11d3-bc22-0080c73c8881")

	// AcpiTableGUID identifies the ACPI 1.0 RSDP configuration table.
	// Reference: section 4.6.1.1
	AcpiTableGUID = MustParseGUID("eb9d2d30-2d88-11d3-9a16-0090273fc14d")

	// SimpleFileSystemProtocolGUID selects the volume access protocol.
	// Reference: section 13.4
	SimpleFileSystemProtocolGUID = MustParseGUID("964e5b22-6459-11d2-8e39-00a0c969723b")

	// LoadedImageProtocolGUID selects the descriptor of a loaded image.
	// Reference: section 9.1
	LoadedImageProtocolGUID = MustParseGUID("5b1b31a1-9562-11d2-8e3f-00a0c969723b")

	// FileInfoGUID selects the EFI_FILE_INFO record for GetInfo.
	// Reference: section 13.5.16
	FileInfoGUID = MustParseGUID("09576e92-6d3f-11d2-8e39-00a0c969723b")

	// SmbiosTableGUID identifies the SMBIOS 2.x entry point table.
	SmbiosTableGUID = MustParseGUID("eb9d2d31-2d88-11d3-9a16-0090273fc14d")

	// Smbios3TableGUID identifies the SMBIOS 3.x entry point table.
	Smbios3TableGUID = MustParseGUID("f2fd1544-9794-4a2c-992e-e5bbcf20e394")
)
