package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Summary is a point-in-time view of what a sniffing run has seen.
type Summary struct {
	Payloads uint64
	Decoded  uint64
	Failed   uint64
	Methods  map[string]uint64
	Kinds    map[string]uint64
	Errors   map[string]uint64
}

// WriteSummary renders s as a borderless table.
func WriteSummary(w io.Writer, s Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Section", "Name", "Count"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.Append([]string{"payloads", "total", count(s.Payloads)})
	table.Append([]string{"payloads", "decoded", count(s.Decoded)})
	table.Append([]string{"payloads", "failed", count(s.Failed)})
	appendSection(table, "method", s.Methods)
	appendSection(table, "kind", s.Kinds)
	appendSection(table, "error", s.Errors)
	table.Render()
}

func appendSection(table *tablewriter.Table, section string, counts map[string]uint64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		label := name
		if label == "" {
			label = "(none)"
		}
		table.Append([]string{section, label, count(counts[name])})
	}
}

func count(n uint64) string {
	return strconv.FormatUint(n, 10)
}
