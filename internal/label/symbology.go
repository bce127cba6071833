package label

import "strings"

// Symbology names a one-dimensional barcode encoding.
type Symbology string

const (
	Code128 Symbology = "CODE128"
	Code39  Symbology = "CODE39"
	Codabar Symbology = "CODABAR"
	EAN     Symbology = "EAN"
	EAN13   Symbology = "EAN13"
	EAN8    Symbology = "EAN8"
	JAN     Symbology = "JAN"
	UPCA    Symbology = "UPCA"
	ITF     Symbology = "ITF"

	DefaultSymbology = Code128
)

var symbologyAliases = map[string]Symbology{
	"NW-7":   Codabar,
	"NW7":    Codabar,
	"UPC":    UPCA,
	"EAN-13": EAN13,
	"EAN-8":  EAN8,
}

// NormalizeSymbology maps a user supplied token onto a Symbology. An empty
// token is the default. Unknown names are passed through upper-cased so the
// renderer can report them.
func NormalizeSymbology(token string) Symbology {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return DefaultSymbology
	}
	if s, ok := symbologyAliases[t]; ok {
		return s
	}
	return Symbology(t)
}

func (s Symbology) String() string {
	if s == "" {
		return string(DefaultSymbology)
	}
	return string(s)
}
