// Package pagemap decodes a KF8 PAGE resource's page-numbering grammar
// and produces both the KF8 page-map XML and the legacy binary APNX
// sidecar file (spec §4.7, supplemented with the "custom" naming variant
// present in the reference implementation but absent from the distilled
// scenario set).
package pagemap

import (
	"fmt"
	"strconv"
	"strings"
)

// NameKind is how one run of page names is generated.
type NameKind byte

const (
	Arabic NameKind = 'a'
	Roman  NameKind = 'r'
	Custom NameKind = 'c'
)

// NameRun is one "(start_page,type,value)" directive: from page startPage
// onward, names are generated per Kind. For Arabic/Roman, Value is the
// first numeral's value and increments per page. For Custom, Value is a
// '|'-separated literal list consumed one entry per page.
type NameRun struct {
	StartPage int
	Kind      NameKind
	Value     string
}

// ParseNames parses the page-map's name-directive string, e.g.
// "(1,c,Cover|Title|Contents)(4,a,1)(20,r,1)".
func ParseNames(s string) ([]NameRun, error) {
	var out []NameRun
	for len(s) > 0 {
		if s[0] != '(' {
			return nil, fmt.Errorf("pagemap: expected '(' at %q", s)
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return nil, fmt.Errorf("pagemap: unterminated directive %q", s)
		}
		inner := s[1:end]
		parts := strings.SplitN(inner, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("pagemap: malformed directive %q", inner)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("pagemap: bad start page %q", parts[0])
		}
		out = append(out, NameRun{StartPage: start, Kind: NameKind(parts[1][0]), Value: parts[2]})
		s = s[end+1:]
	}
	return out, nil
}

// GenerateNames expands name runs into one name per page, 1..pageCount.
func GenerateNames(runs []NameRun, pageCount int) []string {
	names := make([]string, pageCount+1) // 1-indexed, names[0] unused
	var cur NameRun
	var arabicN int
	var romanN int
	var customQueue []string

	runIdx := 0
	for page := 1; page <= pageCount; page++ {
		for runIdx < len(runs) && runs[runIdx].StartPage == page {
			cur = runs[runIdx]
			switch cur.Kind {
			case Arabic:
				arabicN, _ = strconv.Atoi(cur.Value)
			case Roman:
				romanN, _ = strconv.Atoi(cur.Value)
			case Custom:
				customQueue = strings.Split(cur.Value, "|")
			}
			runIdx++
		}
		switch cur.Kind {
		case Arabic:
			names[page] = strconv.Itoa(arabicN)
			arabicN++
		case Roman:
			names[page] = intToRoman(romanN)
			romanN++
		case Custom:
			if len(customQueue) > 0 {
				names[page] = customQueue[0]
				customQueue = customQueue[1:]
			}
		}
	}
	return names
}

var romanTable = []struct {
	Value int
	Sym   string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

func intToRoman(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for _, pair := range romanTable {
		for n >= pair.Value {
			b.WriteString(pair.Sym)
			n -= pair.Value
		}
	}
	return b.String()
}

func romanToInt(s string) int {
	s = strings.ToLower(s)
	val := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	total := 0
	for i := 0; i < len(s); i++ {
		v := val[s[i]]
		if i+1 < len(s) && v < val[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total
}
