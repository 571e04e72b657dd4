package model

// AssignmentKind tags the variant held by an Assignment.
type AssignmentKind int

const (
	Unassigned AssignmentKind = iota
	ByNames
	ByNamesAndSlot
	Legacy
)

func (k AssignmentKind) String() string {
	switch k {
	case ByNames:
		return "by_names"
	case ByNamesAndSlot:
		return "by_names_and_slot"
	case Legacy:
		return "legacy"
	default:
		return "unassigned"
	}
}

// Assignment is the decoded team-assignment cell. It is decoded once by the
// row parser and never re-parsed downstream.
//
//	Unassigned       no recognizable content
//	ByNames          Names only, team must be inferred from the roster
//	ByNamesAndSlot   Names plus the raw slot text
//	Legacy           Names, slot text and grid coordinates (row = slot index, col = team index)
type Assignment struct {
	Kind    AssignmentKind
	Names   []string
	SlotRaw string
	GridRow int
	GridCol int
}

func (a Assignment) IsAssigned() bool {
	return a.Kind != Unassigned
}
