package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agroprecios/backend/internal/domain"
)

// Size patterns run against Normalize(name). A leading `(?:^|[^\d/.,])` keeps a
// size from being read out of the middle of a fraction or decimal.
var (
	// "2 x 500 g", "500g", "1,5 lt"
	multipackSizePattern = regexp.MustCompile(`(?:^|[^\d/.,])(?:(\d+)\s*x\s*)?(\d+(?:[.,]\d+)?)\s*(kgs?|kilos?|grs?|g|lts?|litros?|l|ml|cc)\b`)

	// "1/2 kg", "3/4 litro"
	fractionSizePattern = regexp.MustCompile(`(?:^|[^\d/.,])(\d+)\s*/\s*(\d+)\s*(kgs?|kilos?|lts?|litros?|l)\b`)

	// "2 docenas"
	dozensPattern = regexp.MustCompile(`(?:^|[^\d/.,])(\d+)\s*docenas?\b`)

	// "media docena", "1/2 docena"
	halfDozenPattern = regexp.MustCompile(`\b(?:media|1\s*/\s*2)\s*docena\b`)

	dozenPattern = regexp.MustCompile(`\bdocena\b`)

	// "30 unid", "6 u", "2 paq"
	countPattern = regexp.MustCompile(`(?:^|[^\d/.,])(\d+)\s*(unidades|unidad|unids?|un|u|paquetes|paquete|paqs?)\b`)

	// "500 gramos", "1 kilogramo", "250 mililitros"
	spelledSizePattern = regexp.MustCompile(`(?:^|[^\d/.,])(\d+(?:[.,]\d+)?)\s*(kilogramos?|gramos?|mililitros?|cm3)\b`)

	// "x kg", "por kilo": priced per one base unit of weight or volume
	perUnitSizePattern = regexp.MustCompile(`\b(?:x|por|el)\s*(kgs?|kilos?|kilogramos?|lts?|litros?)\b`)
)

// sizeUnit describes how a size token converts into base units
type sizeUnit struct {
	family domain.QuantityUnit
	factor float64
}

var sizeUnits = map[string]sizeUnit{
	"kg": {domain.QuantityUnitGrams, 1000}, "kgs": {domain.QuantityUnitGrams, 1000},
	"kilo": {domain.QuantityUnitGrams, 1000}, "kilos": {domain.QuantityUnitGrams, 1000},
	"kilogramo": {domain.QuantityUnitGrams, 1000}, "kilogramos": {domain.QuantityUnitGrams, 1000},
	"g": {domain.QuantityUnitGrams, 1}, "gr": {domain.QuantityUnitGrams, 1}, "grs": {domain.QuantityUnitGrams, 1},
	"gramo": {domain.QuantityUnitGrams, 1}, "gramos": {domain.QuantityUnitGrams, 1},
	"l": {domain.QuantityUnitML, 1000}, "lt": {domain.QuantityUnitML, 1000}, "lts": {domain.QuantityUnitML, 1000},
	"litro": {domain.QuantityUnitML, 1000}, "litros": {domain.QuantityUnitML, 1000},
	"ml": {domain.QuantityUnitML, 1}, "cc": {domain.QuantityUnitML, 1}, "cm3": {domain.QuantityUnitML, 1},
	"mililitro": {domain.QuantityUnitML, 1}, "mililitros": {domain.QuantityUnitML, 1},
}

var countUnits = map[string]domain.QuantityUnit{
	"unidades": domain.QuantityUnitUnit, "unidad": domain.QuantityUnitUnit,
	"unid": domain.QuantityUnitUnit, "unids": domain.QuantityUnitUnit,
	"un": domain.QuantityUnitUnit, "u": domain.QuantityUnitUnit,
	"paquetes": domain.QuantityUnitPack, "paquete": domain.QuantityUnitPack,
	"paq": domain.QuantityUnitPack, "paqs": domain.QuantityUnitPack,
}

// UnitParser extracts package quantity and unit from free-text product names
type UnitParser struct {
	steps []func(string) (domain.UnitInfo, bool)
}

// NewUnitParser creates a parser with the standard pattern cascade.
// Earlier steps win over later, more general ones.
func NewUnitParser() *UnitParser {
	p := &UnitParser{}
	p.steps = []func(string) (domain.UnitInfo, bool){
		parseMultipackSize,
		parseFractionSize,
		parseDozen,
		parseCount,
		parseBareSize,
	}
	return p
}

// Parse returns the unit info of name. An unrecognized name yields the zero
// UnitInfo, which means "unit unknown" rather than an error.
func (p *UnitParser) Parse(name string) domain.UnitInfo {
	text := Normalize(name)
	for _, step := range p.steps {
		if info, ok := step(text); ok {
			return info
		}
	}
	return domain.UnitInfo{}
}

func parseMultipackSize(text string) (domain.UnitInfo, bool) {
	m := multipackSizePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return domain.UnitInfo{}, false
	}
	count := 1.0
	if m[2] >= 0 {
		c, ok := parseNumber(text[m[2]:m[3]])
		if !ok || c <= 0 {
			return domain.UnitInfo{}, false
		}
		count = c
	}
	size, ok := parseNumber(text[m[4]:m[5]])
	if !ok {
		return domain.UnitInfo{}, false
	}
	unit := sizeUnits[text[m[6]:m[7]]]
	display := compactDisplay(text[m[4]:m[7]])
	if m[2] >= 0 {
		display = compactDisplay(text[m[2]:m[7]])
	}
	return newUnitInfo(display, count*size*unit.factor, unit.family), true
}

func parseFractionSize(text string) (domain.UnitInfo, bool) {
	m := fractionSizePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return domain.UnitInfo{}, false
	}
	num, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
	den, _ := strconv.ParseFloat(text[m[4]:m[5]], 64)
	if den == 0 {
		return domain.UnitInfo{}, false
	}
	unit := sizeUnits[text[m[6]:m[7]]]
	return newUnitInfo(compactDisplay(text[m[2]:m[7]]), num/den*unit.factor, unit.family), true
}

func parseDozen(text string) (domain.UnitInfo, bool) {
	if m := dozensPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		if n > 0 {
			return newUnitInfo(compactDisplay(strings.TrimLeft(m[0], " -(")), n*12, domain.QuantityUnitUnit), true
		}
	}
	if m := halfDozenPattern.FindString(text); m != "" {
		return newUnitInfo(compactDisplay(m), 6, domain.QuantityUnitUnit), true
	}
	if dozenPattern.MatchString(text) {
		return newUnitInfo("DOCENA", 12, domain.QuantityUnitUnit), true
	}
	return domain.UnitInfo{}, false
}

func parseCount(text string) (domain.UnitInfo, bool) {
	m := countPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return domain.UnitInfo{}, false
	}
	count, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
	if count <= 0 {
		return domain.UnitInfo{}, false
	}
	family := countUnits[text[m[4]:m[5]]]
	return newUnitInfo(compactDisplay(text[m[2]:m[5]]), count, family), true
}

func parseBareSize(text string) (domain.UnitInfo, bool) {
	if m := spelledSizePattern.FindStringSubmatchIndex(text); m != nil {
		size, ok := parseNumber(text[m[2]:m[3]])
		if ok {
			unit := sizeUnits[text[m[4]:m[5]]]
			return newUnitInfo(compactDisplay(text[m[2]:m[5]]), size*unit.factor, unit.family), true
		}
	}
	if m := perUnitSizePattern.FindStringSubmatch(text); m != nil {
		unit := sizeUnits[m[1]]
		return newUnitInfo(strings.ToUpper(m[1]), unit.factor, unit.family), true
	}
	return domain.UnitInfo{}, false
}

func newUnitInfo(display string, quantity float64, family domain.QuantityUnit) domain.UnitInfo {
	q := quantity
	return domain.UnitInfo{
		Display:      display,
		Canonical:    CanonicalUnit(q, family),
		Quantity:     &q,
		QuantityUnit: family,
	}
}

// CanonicalUnit renders a quantity as its rounded integer followed by the unit symbol
func CanonicalUnit(quantity float64, family domain.QuantityUnit) string {
	if family == domain.QuantityUnitNone {
		return ""
	}
	return fmt.Sprintf("%d%s", roundHalfUp(quantity), family.Symbol())
}

// roundHalfUp rounds .5 away from zero for positive quantities
func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// parseNumber reads "1,5" and "1.5" alike
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func compactDisplay(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
