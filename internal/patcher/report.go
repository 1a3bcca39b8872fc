package patcher

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport prints the parsed regions of h as an aligned table:
//
//	Parsed 2 regions containing 3 cells:
//	{
//	    { EditorID: 'urnWhiterun':    Displayname: 'Whiterun Hold' },
//	    ...
//	}
func WriteReport(w io.Writer, h *Handler) error {
	m := h.RegionMap()
	regions := m.Regions()

	longestID, longestName := 0, 0
	for _, r := range regions {
		longestID = max(longestID, len(r.EditorID()))
		longestName = max(longestName, len(r.DisplayName()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Parsed %d %s containing %d %s:\n",
		len(regions), plural(len(regions), "region"),
		m.CellCount(), plural(m.CellCount(), "cell"))
	b.WriteString("{\n")
	for _, r := range regions {
		fmt.Fprintf(&b, "    { EditorID: '%s':%sDisplayname: '%s'%s },\n",
			r.EditorID(), strings.Repeat(" ", longestID+4-len(r.EditorID())),
			r.DisplayName(), strings.Repeat(" ", longestName-len(r.DisplayName())))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
