package feed

import (
	"regexp"
	"strconv"
	"strings"

	"kitchen_demo_sync/internal/model"
)

var legacyAssignment = regexp.MustCompile(`(?i)^\s*scheduled:\s*(.*?)\s+at\s+(.*?)\s*\(\s*grid:\s*(\d+)\s*,\s*(\d+)\s*\)\s*$`)

// placeholders are cell values that mean "nothing assigned".
var placeholders = map[string]bool{
	"": true, "-": true, "--": true, "n/a": true, "na": true,
	"tbd": true, "none": true, "unassigned": true, "not assigned": true,
}

// DecodeAssignment decodes the packed team-assignment cell into its tagged
// variant. Unrecognized content yields an Unassigned value, never an error.
//
//	Scheduled: Aarav, Meera at 9:00 AM - 11:00 AM (Grid: 0,2)   => Legacy
//	Aarav, Meera | 11:00                                        => ByNamesAndSlot
//	Aarav, Meera                                                => ByNames
func DecodeAssignment(raw string) model.Assignment {
	raw = strings.TrimSpace(raw)
	if placeholders[strings.ToLower(raw)] {
		return model.Assignment{}
	}

	if m := legacyAssignment.FindStringSubmatch(raw); m != nil {
		row, _ := strconv.Atoi(m[3])
		col, _ := strconv.Atoi(m[4])
		return model.Assignment{
			Kind:    model.Legacy,
			Names:   splitNames(m[1]),
			SlotRaw: strings.TrimSpace(m[2]),
			GridRow: row,
			GridCol: col,
		}
	}

	namesPart, slotPart, hasSlot := strings.Cut(raw, "|")
	names := splitNames(namesPart)
	slot := ""
	if hasSlot {
		slot = strings.TrimSpace(slotPart)
	}

	switch {
	case slot != "":
		return model.Assignment{Kind: model.ByNamesAndSlot, Names: names, SlotRaw: slot}
	case len(names) > 0:
		return model.Assignment{Kind: model.ByNames, Names: names}
	default:
		return model.Assignment{}
	}
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '&' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" || placeholders[strings.ToLower(part)] {
			continue
		}
		names = append(names, part)
	}
	return names
}

// SplitRecipes turns the recipes cell into an ordered, de-blanked list.
func SplitRecipes(raw string) []string {
	recipes := []string{}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part != "" {
			recipes = append(recipes, part)
		}
	}
	return recipes
}
