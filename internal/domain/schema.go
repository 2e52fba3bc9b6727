package domain

import (
	"strconv"
	"time"
)

// Canonical store columns. Order is part of the store contract.
const (
	ColumnID              = "ID"
	ColumnRetailer        = "Supermercado"
	ColumnProduct         = "Producto"
	ColumnPrice           = "Precio"
	ColumnUnit            = "Unidad"
	ColumnUnitCanonical   = "Unidad_corr"
	ColumnQuantity        = "Cantidad"
	ColumnQuantityUnit    = "Unidades_Separado"
	ColumnComparablePrice = "Precio_comparable"
	ColumnGroup           = "Grupo"
	ColumnSubgroup        = "Subgrupo"
	ColumnFreshTag        = "ClasificaProducto"
	ColumnObservedAt      = "FechaConsulta"
)

// TimestampLayout is the FechaConsulta format, always rendered in UTC
const TimestampLayout = "2006-01-02 15:04:05"

// RecordColumns lists the canonical record schema in contract order
var RecordColumns = []string{
	ColumnRetailer,
	ColumnProduct,
	ColumnPrice,
	ColumnUnit,
	ColumnUnitCanonical,
	ColumnQuantity,
	ColumnQuantityUnit,
	ColumnComparablePrice,
	ColumnGroup,
	ColumnSubgroup,
	ColumnFreshTag,
	ColumnObservedAt,
}

// StoreColumns is the header written to a fresh store segment: the sequence
// identifier followed by the record schema.
func StoreColumns() []string {
	cols := make([]string, 0, len(RecordColumns)+1)
	cols = append(cols, ColumnID)
	return append(cols, RecordColumns...)
}

// FormatTimestamp renders t as a FechaConsulta value
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Values renders the record as column -> cell text
func (r ProductRecord) Values() map[string]string {
	return map[string]string{
		ColumnRetailer:        r.Retailer,
		ColumnProduct:         r.Product,
		ColumnPrice:           formatFloat(&r.Price),
		ColumnUnit:            r.Unit,
		ColumnUnitCanonical:   r.UnitCanonical,
		ColumnQuantity:        formatFloat(r.Quantity),
		ColumnQuantityUnit:    string(r.QuantityUnit),
		ColumnComparablePrice: formatFloat(r.ComparablePrice),
		ColumnGroup:           r.Group,
		ColumnSubgroup:        r.Subgroup,
		ColumnFreshTag:        r.FreshTag,
		ColumnObservedAt:      FormatTimestamp(r.ObservedAt),
	}
}

// Row renders the record in the column order of header. Columns unknown to
// the record schema are left empty; ID is set to seq.
func (r ProductRecord) Row(header []string, seq int) []string {
	values := r.Values()
	row := make([]string, len(header))
	for i, col := range header {
		if col == ColumnID {
			row[i] = strconv.Itoa(seq)
			continue
		}
		row[i] = values[col]
	}
	return row
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
