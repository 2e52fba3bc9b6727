package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// nonPriceCharsRegex matches everything except digits and separators
var nonPriceCharsRegex = regexp.MustCompile(`[^\d,.]`)

// ParsePrice converts scraped price text or an API number into a float.
// Periods are thousands separators and a comma is the decimal mark, so
// "15.000,50" parses to 15000.5. Anything unparseable yields 0.
func ParsePrice(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(v)
	case float32:
		return finiteOrZero(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return finiteOrZero(f)
		}
		return parsePriceText(v.String())
	case string:
		return parsePriceText(v)
	case []byte:
		return parsePriceText(string(v))
	default:
		return parsePriceText(fmt.Sprint(v))
	}
}

func parsePriceText(text string) float64 {
	cleaned := nonPriceCharsRegex.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finiteOrZero(v)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
