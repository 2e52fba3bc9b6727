package usecase

import (
	"errors"
	"strings"
	"time"

	"github.com/agroprecios/backend/internal/domain"
)

// Rejection reasons reported in run summaries
const (
	ReasonExcluded     = "excluded"
	ReasonInvalidPrice = "invalid_price"
	ReasonUnclassified = "unclassified"
	ReasonOther        = "other"
)

// RecordAssembler turns raw listings into canonical product records
type RecordAssembler struct {
	classifier *Classifier
	units      *UnitParser
}

// NewRecordAssembler creates an assembler from its classifier and unit parser
func NewRecordAssembler(classifier *Classifier, units *UnitParser) *RecordAssembler {
	return &RecordAssembler{classifier: classifier, units: units}
}

// Assemble builds the record for one listing observed at observedAt.
// Returns domain.ErrExcludedProduct, domain.ErrInvalidPrice or
// domain.ErrUnclassified when the listing must not be stored.
func (a *RecordAssembler) Assemble(listing domain.RawListing, observedAt time.Time) (domain.ProductRecord, error) {
	if a.classifier.IsExcluded(listing.Name) {
		return domain.ProductRecord{}, domain.ErrExcludedProduct
	}

	price := ParsePrice(listing.RawPrice)
	if price <= 0 {
		return domain.ProductRecord{}, domain.ErrInvalidPrice
	}

	group, subgroup, ok := a.classifier.AssignGroup(listing.Name)
	if !ok || group == "" {
		return domain.ProductRecord{}, domain.ErrUnclassified
	}

	freshTag := a.classifier.FreshTag(listing.Name)
	unit := a.units.Parse(listing.Name)

	return domain.ProductRecord{
		Retailer:        strings.ToLower(strings.TrimSpace(listing.Retailer)),
		Product:         CleanProductName(listing.Name),
		Price:           price,
		Unit:            unit.Display,
		UnitCanonical:   unit.Canonical,
		Quantity:        unit.Quantity,
		QuantityUnit:    unit.QuantityUnit,
		ComparablePrice: ComparablePrice(price, unit.Quantity, unit.QuantityUnit),
		Group:           group,
		Subgroup:        subgroup,
		FreshTag:        freshTag,
		ObservedAt:      observedAt.UTC().Truncate(time.Second),
	}, nil
}

// ComparablePrice rescales price to the reference amount of the unit family.
// Nil when the quantity is unknown or not positive.
func ComparablePrice(price float64, quantity *float64, family domain.QuantityUnit) *float64 {
	if quantity == nil || *quantity <= 0 {
		return nil
	}
	ref := family.ReferenceAmount()
	if ref == 0 {
		return nil
	}
	v := price * ref / *quantity
	return &v
}

// RejectionReason maps an Assemble error to its summary label
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrExcludedProduct):
		return ReasonExcluded
	case errors.Is(err, domain.ErrInvalidPrice):
		return ReasonInvalidPrice
	case errors.Is(err, domain.ErrUnclassified):
		return ReasonUnclassified
	default:
		return ReasonOther
	}
}
