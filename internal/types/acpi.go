package types

// RSDPPriority ranks the ACPI root pointer versions.
type RSDPPriority int

const (
	// RSDPNone means no ACPI root pointer is published.
	RSDPNone RSDPPriority = iota
	// RSDPV1 is the ACPI 1.0 root pointer.
	RSDPV1
	// RSDPV2 is the ACPI 2.0+ root pointer. It always outranks RSDPV1.
	RSDPV2
)

// String returns the printable version of the priority.
func (p RSDPPriority) String() string {
	switch p {
	case RSDPV1:
		return "1.0"
	case RSDPV2:
		return "2.0"
	default:
		return "none"
	}
}

// RSDPLocation is where the ACPI root pointer sits in the configuration table list.
type RSDPLocation struct {
	Priority RSDPPriority
	// Index is only meaningful when Priority is not RSDPNone.
	Index int
}

// Found reports whether a root pointer was located.
func (l RSDPLocation) Found() bool {
	return l.Priority != RSDPNone
}

// Table returns the configuration table entry the location points at.
func (l RSDPLocation) Table(tables []ConfigurationTable) (ConfigurationTable, bool) {
	if !l.Found() || l.Index < 0 || l.Index >= len(tables) {
		return ConfigurationTable{}, false
	}
	return tables[l.Index], true
}
