package pretty

import "unicode/utf8"

// Abbrev returns s shortened to CutTo bytes when it's longer than MaxLen.
// Both default to 12; a single range sets both.
func Abbrev(s string, ranges ...int) Abbreviated {
	MaxLen := 12
	CutTo := 12
	if len(ranges) >= 2 {
		MaxLen, CutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		MaxLen, CutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   MaxLen,
		CutTo:    CutTo,
	}
}

type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if len(s.Original) <= s.MaxLen {
		return s.Original
	}
	cut := s.CutTo
	if cut >= len(s.Original) {
		return s.Original
	}
	// Don't split a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(s.Original[cut]) {
		cut--
	}
	return s.Original[:cut] + "…"
}
