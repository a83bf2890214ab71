// scraper/listing.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gewnthar/agendawatch/models"
	"github.com/gewnthar/agendawatch/utils"
)

// meetingPageRegex matches meeting detail pages such as /20260122-reg.htm.
var meetingPageRegex = regexp.MustCompile(`/(\d{8})-([a-z]+)\.html?$`)

const listingDateLayout = "20060102"

// FetchListing downloads the listing page and returns every meeting link on
// it in document order. It does not consult the store.
func (c *Client) FetchListing(ctx context.Context, listingURL string) ([]models.Candidate, error) {
	c.log.Info("fetching meeting listing", "url", listingURL)

	resp, err := c.get(ctx, c.pages, listingURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	candidates, err := ParseListing(resp.Body, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	c.log.Info("parsed meeting listing", "url", listingURL, "candidates", len(candidates))
	return candidates, nil
}

// ParseListing extracts candidate meetings from listing HTML. Relative links
// are resolved against base.
func ParseListing(r io.Reader, base *url.URL) ([]models.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse listing HTML: %v", models.ErrParse, err)
	}

	candidates := []models.Candidate{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, ok := resolveHref(base, href)
		if !ok {
			return
		}
		m := meetingPageRegex.FindStringSubmatch(abs.Path)
		if m == nil {
			return
		}
		digits, code := m[1], m[2]
		candidates = append(candidates, models.Candidate{
			ID:          digits + "-" + code,
			Date:        parseListingDate(digits),
			MeetingType: utils.FormatMeetingType(code),
			URL:         abs.String(),
			LinkText:    strings.TrimSpace(a.Text()),
		})
	})
	return candidates, nil
}

// parseListingDate returns YYYY-MM-DD, or the digits unchanged when they are
// not a real date.
func parseListingDate(digits string) string {
	t, err := time.Parse(listingDateLayout, digits)
	if err != nil {
		return digits
	}
	return t.Format(models.DateLayout)
}

func resolveHref(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if base == nil {
		return ref, true
	}
	return base.ResolveReference(ref), true
}
