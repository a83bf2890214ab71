// scraper/agenda.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gewnthar/agendawatch/models"
)

// ResolveAgendaURL fetches a meeting detail page and returns the absolute URL
// of its agenda document, or "" when the page links none. Fetch failures wrap
// models.ErrTransport.
func (c *Client) ResolveAgendaURL(ctx context.Context, detailURL string) (string, error) {
	resp, err := c.get(ctx, c.pages, detailURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	agendaURL, err := FindAgendaLink(resp.Body, resp.Request.URL, c.documentPatterns)
	if err != nil {
		return "", err
	}
	if agendaURL == "" {
		c.log.Info("no agenda link on detail page", "url", detailURL)
	} else {
		c.log.Debug("resolved agenda", "url", detailURL, "agenda_url", agendaURL)
	}
	return agendaURL, nil
}

// FindAgendaLink returns the first link, in document order, whose text
// mentions "agenda" and whose target is a .pdf file or contains one of the
// document patterns.
func FindAgendaLink(r io.Reader, base *url.URL, documentPatterns []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse detail HTML: %v", models.ErrParse, err)
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(a.Text())
		if !strings.Contains(text, "agenda") {
			return true
		}
		href, _ := a.Attr("href")
		if !isDocumentLink(href, documentPatterns) {
			return true
		}
		abs, ok := resolveHref(base, href)
		if !ok {
			return true
		}
		found = abs.String()
		return false
	})
	return found, nil
}

func isDocumentLink(href string, patterns []string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	if lower == "" {
		return false
	}
	path := lower
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if strings.HasSuffix(path, ".pdf") {
		return true
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
