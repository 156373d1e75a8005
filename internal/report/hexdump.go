package report

import (
	"fmt"
	"strings"
)

const hexRowWidth = 16

// HexDump renders data as uppercase hex pairs, 16 per row.
func HexDump(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			if i%hexRowWidth == 0 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	if len(data) > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}
