package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names one attribute of a scraped business. The string value is the
// column name used in every persisted dataset.
type Field string

const (
	FieldName           Field = "name"
	FieldAddress        Field = "address"
	FieldDomain         Field = "domain"
	FieldWebsite        Field = "website"
	FieldPhone          Field = "phone_number"
	FieldCategory       Field = "category"
	FieldLocation       Field = "location"
	FieldReviewsCount   Field = "reviews_count"
	FieldReviewsAverage Field = "reviews_average"
	FieldLatitude       Field = "latitude"
	FieldLongitude      Field = "longitude"
	FieldPlusCode       Field = "plus_code"
)

// Fields lists every attribute in column order.
var Fields = []Field{
	FieldName, FieldAddress, FieldDomain, FieldWebsite, FieldPhone, FieldCategory,
	FieldLocation, FieldReviewsCount, FieldReviewsAverage, FieldLatitude, FieldLongitude,
	FieldPlusCode,
}

// Kind is the value type stored behind a Field.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindDecimal
)

func (f Field) Kind() Kind {
	switch f {
	case FieldReviewsCount:
		return KindInteger
	case FieldReviewsAverage, FieldLatitude, FieldLongitude:
		return KindDecimal
	}
	return KindText
}

// ParseField maps a column header back to its Field.
func ParseField(column string) (Field, bool) {
	c := Field(strings.TrimSpace(column))
	for _, f := range Fields {
		if f == c {
			return f, true
		}
	}
	return "", false
}

// Header returns the column names in order.
func Header() []string {
	h := make([]string, len(Fields))
	for i, f := range Fields {
		h[i] = string(f)
	}
	return h
}

type opt[T any] struct {
	v  T
	ok bool
}

func some[T any](v T) opt[T] { return opt[T]{v: v, ok: true} }

func (o opt[T]) get() (T, bool) { return o.v, o.ok }

// Business represents one scraped place. Every attribute is optional.
// Values are immutable once built; use Builder or With to derive new ones.
type Business struct {
	name           opt[string]
	address        opt[string]
	domain         opt[string]
	website        opt[string]
	phone          opt[string]
	category       opt[string]
	location       opt[string]
	reviewsCount   opt[int]
	reviewsAverage opt[float64]
	latitude       opt[float64]
	longitude      opt[float64]
	plusCode       opt[string]
}

func (b Business) Name() (string, bool)            { return b.name.get() }
func (b Business) Address() (string, bool)         { return b.address.get() }
func (b Business) Domain() (string, bool)          { return b.domain.get() }
func (b Business) Website() (string, bool)         { return b.website.get() }
func (b Business) Phone() (string, bool)           { return b.phone.get() }
func (b Business) Category() (string, bool)        { return b.category.get() }
func (b Business) Location() (string, bool)        { return b.location.get() }
func (b Business) ReviewsCount() (int, bool)       { return b.reviewsCount.get() }
func (b Business) ReviewsAverage() (float64, bool) { return b.reviewsAverage.get() }
func (b Business) Latitude() (float64, bool)       { return b.latitude.get() }
func (b Business) Longitude() (float64, bool)      { return b.longitude.get() }
func (b Business) PlusCode() (string, bool)        { return b.plusCode.get() }

// Value returns the textual form of a field, as it is persisted.
func (b Business) Value(f Field) (string, bool) {
	switch f.Kind() {
	case KindInteger:
		n, ok := b.ReviewsCount()
		if !ok {
			return "", false
		}
		return strconv.Itoa(n), true
	case KindDecimal:
		var o opt[float64]
		switch f {
		case FieldReviewsAverage:
			o = b.reviewsAverage
		case FieldLatitude:
			o = b.latitude
		case FieldLongitude:
			o = b.longitude
		}
		if !o.ok {
			return "", false
		}
		return strconv.FormatFloat(o.v, 'f', -1, 64), true
	}
	if p := b.textField(f); p != nil && p.ok {
		return p.v, true
	}
	return "", false
}

// Values flattens the business into one row in column order. Absent
// attributes become empty cells.
func (b Business) Values() []string {
	row := make([]string, len(Fields))
	for i, f := range Fields {
		row[i], _ = b.Value(f)
	}
	return row
}

// Has reports whether the field is present.
func (b Business) Has(f Field) bool {
	_, ok := b.Value(f)
	return ok
}

// With returns a copy with one field replaced by the parsed text. Empty text
// clears the field.
func (b Business) With(f Field, text string) (Business, error) {
	bb := Builder{b: b, report: Report{}}
	bb.Set(f, text)
	out, report := bb.Build()
	if o := report[f]; o.Status == StatusFailed {
		return b, fmt.Errorf("setting %s: %w", f, o.Reason)
	}
	return out, nil
}

func (b Business) String() string {
	name, ok := b.Name()
	if !ok {
		name = "<unnamed>"
	}
	if d, ok := b.Domain(); ok {
		return name + " (" + d + ")"
	}
	return name
}

func (b *Business) textField(f Field) *opt[string] {
	switch f {
	case FieldName:
		return &b.name
	case FieldAddress:
		return &b.address
	case FieldDomain:
		return &b.domain
	case FieldWebsite:
		return &b.website
	case FieldPhone:
		return &b.phone
	case FieldCategory:
		return &b.category
	case FieldLocation:
		return &b.location
	case FieldPlusCode:
		return &b.plusCode
	}
	return nil
}
