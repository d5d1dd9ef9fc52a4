package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rendis/mapharvest/internal/model"
)

// Selectors for the place detail pane of Google Maps.
const (
	selName        = "h1.DUwDvf"
	selAddress     = `button[data-item-id="address"] div.fontBodyMedium`
	selAuthority   = `a[data-item-id="authority"] div.fontBodyMedium`
	selPhone       = `button[data-item-id*="phone:tel:"] div.fontBodyMedium`
	selReviewChart = `div[jsaction="pane.reviewChart.moreReviews"]`
	selPlusCode    = `button[data-item-id="oloc"] div.fontBodyMedium`
	selCategory    = `button[jsaction*="pane.place.category"] div.fontBodyMedium`
	selCategoryAlt = `div[class="fontBodyMedium"] > span`
)

// placeCoords matches the !3d<lat>!4d<lng> pair Google embeds in place URLs.
var placeCoords = regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`)

var errNoCoords = errors.New("no place coordinates in url")

// Page is a rendered listing detail pane.
type Page struct {
	HTML string
	URL  string
}

// Listing extracts a business from a detail pane. Each field is attempted on
// its own; a field that cannot be read is reported and left absent.
func Listing(page Page, searchTerm string) (model.Business, model.Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return model.Business{}, nil, fmt.Errorf("parsing listing html: %w", err)
	}

	bb := model.NewBuilder()
	bb.Apply(model.FieldName, text(doc, selName))
	bb.Apply(model.FieldAddress, text(doc, selAddress))

	domain := text(doc, selAuthority)
	bb.Apply(model.FieldDomain, domain)
	bb.Apply(model.FieldWebsite, website(domain))

	bb.Apply(model.FieldPhone, text(doc, selPhone))
	bb.Apply(model.FieldReviewsCount, reviewsCount(doc))
	bb.Apply(model.FieldReviewsAverage, reviewsAverage(doc))
	bb.Apply(model.FieldPlusCode, text(doc, selPlusCode))
	bb.Apply(model.FieldCategory, category(doc))
	bb.Apply(model.FieldLocation, Location(searchTerm))

	lat, lng := coordinates(page.URL)
	bb.Apply(model.FieldLatitude, lat)
	bb.Apply(model.FieldLongitude, lng)

	b, report := bb.Build()
	return b, report, nil
}

// Location is the place part of a search term: "cafes in Rome" gives "Rome".
func Location(term string) model.Outcome {
	idx := strings.LastIndex(term, " in ")
	if idx < 0 {
		return model.Absent()
	}
	loc := strings.TrimSpace(term[idx+len(" in "):])
	if loc == "" {
		return model.Absent()
	}
	return model.Found(loc)
}

func text(doc *goquery.Document, sel string) model.Outcome {
	s := doc.Find(sel).First()
	if s.Length() == 0 {
		return model.Absent()
	}
	v := strings.TrimSpace(s.Text())
	if v == "" {
		return model.Failed(fmt.Errorf("%s: empty text", sel))
	}
	return model.Found(v)
}

func website(domain model.Outcome) model.Outcome {
	if domain.Status != model.StatusFound {
		return domain
	}
	if strings.HasPrefix(domain.Value, "www.") {
		return model.Found("https://" + domain.Value)
	}
	return model.Found("https://www." + domain.Value)
}

// reviewsCount reads "(1,204)" or "1,204 reviews".
func reviewsCount(doc *goquery.Document) model.Outcome {
	o := text(doc, selReviewChart+" span")
	if o.Status != model.StatusFound {
		return o
	}
	token := firstToken(o.Value)
	token = strings.Trim(token, "()")
	token = strings.ReplaceAll(token, ",", "")
	token = strings.ReplaceAll(token, ".", "")
	if _, err := strconv.Atoi(token); err != nil {
		return model.Failed(fmt.Errorf("review count %q: %w", o.Value, err))
	}
	return model.Found(token)
}

// reviewsAverage reads the aria-label "4,6 stars" / "4.6 stars".
func reviewsAverage(doc *goquery.Document) model.Outcome {
	s := doc.Find(selReviewChart + ` div[role="img"]`).First()
	if s.Length() == 0 {
		return model.Absent()
	}
	label, ok := s.Attr("aria-label")
	if !ok || strings.TrimSpace(label) == "" {
		return model.Failed(errors.New("review average: no aria-label"))
	}
	token := strings.ReplaceAll(firstToken(label), ",", ".")
	if _, err := strconv.ParseFloat(token, 64); err != nil {
		return model.Failed(fmt.Errorf("review average %q: %w", label, err))
	}
	return model.Found(token)
}

func category(doc *goquery.Document) model.Outcome {
	if o := text(doc, selCategory); o.Status == model.StatusFound {
		return o
	}
	return text(doc, selCategoryAlt)
}

func coordinates(url string) (lat, lng model.Outcome) {
	m := placeCoords.FindStringSubmatch(url)
	if m == nil {
		absent := model.Outcome{Status: model.StatusAbsent, Reason: errNoCoords}
		return absent, absent
	}
	return model.Found(m[1]), model.Found(m[2])
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
