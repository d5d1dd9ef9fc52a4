package storage

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/rendis/mapharvest/internal/model"
)

// sqlArgs converts a business into nullable driver values in column order.
func sqlArgs(b model.Business) []any {
	args := make([]any, len(model.Fields))
	for i, f := range model.Fields {
		switch f.Kind() {
		case model.KindInteger:
			n, ok := b.ReviewsCount()
			args[i] = sql.NullInt64{Int64: int64(n), Valid: ok}
		case model.KindDecimal:
			var (
				v  float64
				ok bool
			)
			switch f {
			case model.FieldReviewsAverage:
				v, ok = b.ReviewsAverage()
			case model.FieldLatitude:
				v, ok = b.Latitude()
			case model.FieldLongitude:
				v, ok = b.Longitude()
			}
			args[i] = sql.NullFloat64{Float64: v, Valid: ok}
		default:
			s, ok := b.Value(f)
			args[i] = sql.NullString{String: s, Valid: ok}
		}
	}
	return args
}

// scanBusiness reads one row selected with columnList.
func scanBusiness(rows *sql.Rows) (model.Business, error) {
	dest := make([]any, len(model.Fields))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	if err := rows.Scan(dest...); err != nil {
		return model.Business{}, err
	}
	bb := model.NewBuilder()
	for i, f := range model.Fields {
		if ns := dest[i].(*sql.NullString); ns.Valid {
			bb.Set(f, ns.String)
		}
	}
	b, _ := bb.Build()
	return b, nil
}

func columnList() string {
	return strings.Join(model.Header(), ", ")
}

// placeholders returns n "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// placeholdersFrom returns n numbered markers starting at $start.
func placeholdersFrom(start, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(marks, ", ")
}
