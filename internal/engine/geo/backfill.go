package geo

import (
	"context"
	"strconv"

	"github.com/rendis/mapharvest/internal/model"
)

// BackfillResult summarizes a Backfill pass.
type BackfillResult struct {
	Filled  int
	Skipped int
	Errors  map[int]error
}

// Backfill sets latitude and longitude on records that lack them but carry
// a plus code. Records are returned in the same order; failures leave the
// record untouched and are reported by index.
func Backfill(ctx context.Context, g Geocoder, bs []model.Business) ([]model.Business, BackfillResult) {
	out := make([]model.Business, len(bs))
	copy(out, bs)
	res := BackfillResult{Errors: map[int]error{}}

	for i, b := range out {
		if ctx.Err() != nil {
			break
		}
		raw, ok := b.PlusCode()
		if !ok || (b.Has(model.FieldLatitude) && b.Has(model.FieldLongitude)) {
			res.Skipped++
			continue
		}

		code, ref := SplitPlusCode(raw)
		if ref == "" {
			if loc, ok := b.Location(); ok {
				ref = loc
			}
		}

		pt, err := g.Locate(ctx, code, ref)
		if err == nil && !ValidPoint(pt) {
			err = ErrInvalidCode
		}
		if err != nil {
			res.Errors[i] = err
			continue
		}

		nb, err := b.With(model.FieldLatitude, strconv.FormatFloat(pt.Lat(), 'f', -1, 64))
		if err == nil {
			nb, err = nb.With(model.FieldLongitude, strconv.FormatFloat(pt.Lon(), 'f', -1, 64))
		}
		if err != nil {
			res.Errors[i] = err
			continue
		}
		out[i] = nb
		res.Filled++
	}
	return out, res
}
