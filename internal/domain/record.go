package domain

import "time"

// QuantityUnit is the base unit family of a parsed package quantity
type QuantityUnit string

const (
	QuantityUnitNone  QuantityUnit = ""
	QuantityUnitGrams QuantityUnit = "GR"
	QuantityUnitML    QuantityUnit = "ML"
	QuantityUnitUnit  QuantityUnit = "UNIT"
	QuantityUnitPack  QuantityUnit = "PACK"
)

// Symbol returns the suffix used in canonical unit strings ("500GR", "12UNID")
func (u QuantityUnit) Symbol() string {
	switch u {
	case QuantityUnitGrams:
		return "GR"
	case QuantityUnitML:
		return "ML"
	case QuantityUnitUnit:
		return "UNID"
	case QuantityUnitPack:
		return "PAQ"
	}
	return ""
}

// ReferenceAmount is the quantity a comparable price is normalized to:
// 1000 base units for weight and volume, a single item for counts.
func (u QuantityUnit) ReferenceAmount() float64 {
	switch u {
	case QuantityUnitGrams, QuantityUnitML:
		return 1000
	case QuantityUnitUnit, QuantityUnitPack:
		return 1
	}
	return 0
}

// RawListing is a single (name, price) pair produced by a retailer fetcher
type RawListing struct {
	Retailer    string `json:"retailer"`
	CategoryRef string `json:"categoryRef"`
	Name        string `json:"name"`
	// RawPrice holds either the scraped price text or a number from an API payload.
	RawPrice any `json:"rawPrice"`
}

// UnitInfo is the outcome of parsing a package size out of a product name
type UnitInfo struct {
	Display      string       `json:"display"`
	Canonical    string       `json:"canonical"`
	Quantity     *float64     `json:"quantity,omitempty"`
	QuantityUnit QuantityUnit `json:"quantityUnit"`
}

// Classification is the taxonomy assignment for a product name
type Classification struct {
	Group    string `json:"group"`
	Subgroup string `json:"subgroup"`
	FreshTag string `json:"freshTag"`
}

// ProductRecord is one canonical, immutable price observation
type ProductRecord struct {
	Retailer        string       `json:"retailer"`
	Product         string       `json:"product"`
	Price           float64      `json:"price"`
	Unit            string       `json:"unit"`
	UnitCanonical   string       `json:"unitCanonical"`
	Quantity        *float64     `json:"quantity"`
	QuantityUnit    QuantityUnit `json:"quantityUnit"`
	ComparablePrice *float64     `json:"comparablePrice"`
	Group           string       `json:"group"`
	Subgroup        string       `json:"subgroup"`
	FreshTag        string       `json:"freshTag"`
	ObservedAt      time.Time    `json:"observedAt"`
}

// RecordKey identifies an observation for deduplication
type RecordKey struct {
	Retailer   string
	Product    string
	ObservedAt string
}
