package staleness

import (
	"fmt"
	"sort"
	"strings"
)

// reportSample caps the per-unit date listing in the formatted report.
const reportSample = 5

// Format renders a human-readable staleness report grouped by unit. unitIDs
// is the full declared set, so up-to-date units are listed as OK.
func Format(entries []Entry, unitIDs []string) string {
	var b strings.Builder

	if len(entries) == 0 {
		b.WriteString("All data is up-to-date.\n")
		return b.String()
	}

	byUnit := make(map[string][]Entry)
	for _, e := range entries {
		byUnit[e.UnitID] = append(byUnit[e.UnitID], e)
	}

	b.WriteString("\nStaleness Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	staleUnits := make([]string, 0, len(byUnit))
	for id := range byUnit {
		staleUnits = append(staleUnits, id)
	}
	sort.Strings(staleUnits)

	for _, id := range staleUnits {
		var missing, changed []Entry
		for _, e := range byUnit[id] {
			if e.Reason == ReasonMissing {
				missing = append(missing, e)
			} else {
				changed = append(changed, e)
			}
		}

		if len(changed) > 0 {
			fmt.Fprintf(&b, "\nUnit %q has been MODIFIED:\n", id)
			fmt.Fprintf(&b, "  Current hash: %s\n", changed[0].CurrentHash)
			fmt.Fprintf(&b, "  Affected dates (%d):\n", len(changed))
			writeDates(&b, changed, func(e Entry) string {
				return fmt.Sprintf("    - %s (stored: %s)\n", e.Date, e.StoredHash)
			})
		}

		if len(missing) > 0 {
			fmt.Fprintf(&b, "\nUnit %q - MISSING data:\n", id)
			fmt.Fprintf(&b, "  Current hash: %s\n", missing[0].CurrentHash)
			fmt.Fprintf(&b, "  Dates without data (%d):\n", len(missing))
			writeDates(&b, missing, func(e Entry) string {
				return fmt.Sprintf("    - %s\n", e.Date)
			})
		}
	}

	for _, id := range unitIDs {
		if _, stale := byUnit[id]; !stale {
			fmt.Fprintf(&b, "\nUnit %q - OK (no changes)\n", id)
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d stale date/unit combinations found\n", len(entries))
	return b.String()
}

func writeDates(b *strings.Builder, entries []Entry, line func(Entry) string) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	for i, e := range sorted {
		if i == reportSample {
			fmt.Fprintf(b, "    ... and %d more\n", len(sorted)-reportSample)
			break
		}
		b.WriteString(line(e))
	}
}
