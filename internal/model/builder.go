package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// draft mirrors the numeric attributes of a Business so range rules can be
// declared as validator tags.
type draft struct {
	ReviewsCount   *int     `validate:"omitempty,gte=0"`
	ReviewsAverage *float64 `validate:"omitempty,gte=0,lte=5"`
	Latitude       *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `validate:"omitempty,gte=-180,lte=180"`
}

var draftFields = map[string]Field{
	"ReviewsCount":   FieldReviewsCount,
	"ReviewsAverage": FieldReviewsAverage,
	"Latitude":       FieldLatitude,
	"Longitude":      FieldLongitude,
}

// Builder assembles a Business field by field. Nothing escapes until Build.
type Builder struct {
	b      Business
	report Report
}

func NewBuilder() *Builder {
	return &Builder{report: Report{}}
}

func (bb *Builder) Name(v string) *Builder     { return bb.Set(FieldName, v) }
func (bb *Builder) Address(v string) *Builder  { return bb.Set(FieldAddress, v) }
func (bb *Builder) Domain(v string) *Builder   { return bb.Set(FieldDomain, v) }
func (bb *Builder) Website(v string) *Builder  { return bb.Set(FieldWebsite, v) }
func (bb *Builder) Phone(v string) *Builder    { return bb.Set(FieldPhone, v) }
func (bb *Builder) Category(v string) *Builder { return bb.Set(FieldCategory, v) }
func (bb *Builder) Location(v string) *Builder { return bb.Set(FieldLocation, v) }
func (bb *Builder) PlusCode(v string) *Builder { return bb.Set(FieldPlusCode, v) }

func (bb *Builder) ReviewsCount(n int) *Builder {
	bb.b.reviewsCount = some(n)
	bb.report[FieldReviewsCount] = Found(strconv.Itoa(n))
	return bb
}

func (bb *Builder) ReviewsAverage(v float64) *Builder {
	return bb.decimal(FieldReviewsAverage, v)
}

func (bb *Builder) Coordinates(lat, lng float64) *Builder {
	bb.decimal(FieldLatitude, lat)
	return bb.decimal(FieldLongitude, lng)
}

// Set parses text into the field's type. Empty text leaves the field absent;
// text that does not parse leaves it absent and records the failure.
func (bb *Builder) Set(f Field, text string) *Builder {
	text = strings.TrimSpace(text)
	if text == "" {
		bb.clear(f)
		bb.report[f] = Absent()
		return bb
	}

	switch f.Kind() {
	case KindInteger:
		n, err := parseInteger(text)
		if err != nil {
			bb.clear(f)
			bb.report[f] = Failed(err)
			return bb
		}
		bb.b.reviewsCount = some(n)
	case KindDecimal:
		v, err := parseDecimal(text)
		if err != nil {
			bb.clear(f)
			bb.report[f] = Failed(err)
			return bb
		}
		bb.decimal(f, v)
	default:
		p := bb.b.textField(f)
		if p == nil {
			bb.report[f] = Failed(fmt.Errorf("unknown field %q", f))
			return bb
		}
		*p = some(text)
	}
	bb.report[f] = Found(text)
	return bb
}

// Apply consumes the outcome of an extraction attempt.
func (bb *Builder) Apply(f Field, o Outcome) *Builder {
	if o.Status == StatusFound {
		return bb.Set(f, o.Value)
	}
	bb.clear(f)
	bb.report[f] = o
	return bb
}

// Build validates numeric ranges and returns the finished value with the
// per-field report. Out-of-range values are dropped, never coerced.
func (bb *Builder) Build() (Business, Report) {
	out := bb.b
	d := draft{}
	if n, ok := out.reviewsCount.get(); ok {
		d.ReviewsCount = &n
	}
	if v, ok := out.reviewsAverage.get(); ok {
		d.ReviewsAverage = &v
	}
	if v, ok := out.latitude.get(); ok {
		d.Latitude = &v
	}
	if v, ok := out.longitude.get(); ok {
		d.Longitude = &v
	}

	report := make(Report, len(bb.report))
	for f, o := range bb.report {
		report[f] = o
	}

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				f, ok := draftFields[fe.StructField()]
				if !ok {
					continue
				}
				clearField(&out, f)
				report[f] = Failed(fmt.Errorf("%v violates %s=%s", fe.Value(), fe.Tag(), fe.Param()))
			}
		}
	}
	return out, report
}

func (bb *Builder) decimal(f Field, v float64) *Builder {
	switch f {
	case FieldReviewsAverage:
		bb.b.reviewsAverage = some(v)
	case FieldLatitude:
		bb.b.latitude = some(v)
	case FieldLongitude:
		bb.b.longitude = some(v)
	}
	bb.report[f] = Found(strconv.FormatFloat(v, 'f', -1, 64))
	return bb
}

func (bb *Builder) clear(f Field) {
	clearField(&bb.b, f)
}

func clearField(b *Business, f Field) {
	switch f {
	case FieldReviewsCount:
		b.reviewsCount = opt[int]{}
	case FieldReviewsAverage:
		b.reviewsAverage = opt[float64]{}
	case FieldLatitude:
		b.latitude = opt[float64]{}
	case FieldLongitude:
		b.longitude = opt[float64]{}
	default:
		if p := b.textField(f); p != nil {
			*p = opt[string]{}
		}
	}
}

// parseInteger accepts thousands separators and integral decimals such as
// "1,204" or "87.0" (spreadsheets promote sparse integer columns to floats).
func parseInteger(text string) (int, error) {
	clean := strings.ReplaceAll(text, ",", "")
	if n, err := strconv.Atoi(clean); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not an integer", text)
	}
	if v >= math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("%q is out of range", text)
	}
	return int(v), nil
}

func parseDecimal(text string) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a number", text)
	}
	return v, nil
}
