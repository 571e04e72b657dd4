package notifications

import (
	"fmt"
	"sort"
	"strings"

	"kitchen_demo_sync/internal/model"
)

const maxLinesShown = 10

func FormatWarnings(warnings []model.Warning) string {
	var sb strings.Builder
	if len(warnings) == 1 {
		sb.WriteString("🍳 Demo sync: 1 data warning\n")
	} else {
		fmt.Fprintf(&sb, "🍳 Demo sync: %d data warnings\n", len(warnings))
	}

	for _, w := range warnings[:min(len(warnings), maxLinesShown)] {
		if w.RowIndex > 0 {
			fmt.Fprintf(&sb, "• row %d [%s] %s\n", w.RowIndex, w.Kind, w.Message)
		} else {
			fmt.Fprintf(&sb, "• %s [%s] %s\n", w.RecordID, w.Kind, w.Message)
		}
	}
	writeOverflow(&sb, len(warnings))
	return strings.TrimSuffix(sb.String(), "\n")
}

func FormatStatusChanges(changes []model.StatusChange) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %d demo status change(s)\n", len(changes))
	for _, ch := range changes[:min(len(changes), maxLinesShown)] {
		fmt.Fprintf(&sb, "• %s: %s → %s\n", ch.ClientName, statusLabel(ch.From), statusLabel(ch.To))
	}
	writeOverflow(&sb, len(changes))
	return strings.TrimSuffix(sb.String(), "\n")
}

func writeOverflow(sb *strings.Builder, total int) {
	if total > maxLinesShown {
		fmt.Fprintf(sb, "... and %d more\n", total-maxLinesShown)
	}
}

func statusLabel(s model.LeadStatus) string {
	return strings.TrimPrefix(string(s), "demo_")
}

// groupByKind splits warnings per kind, kinds in sorted order.
func groupByKind(warnings []model.Warning) [][]model.Warning {
	byKind := make(map[string][]model.Warning)
	for _, w := range warnings {
		byKind[w.Kind] = append(byKind[w.Kind], w)
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	out := make([][]model.Warning, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, byKind[k])
	}
	return out
}
