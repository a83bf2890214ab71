// scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/models"
)

// Client fetches the listing page, meeting detail pages and agenda documents.
type Client struct {
	pages            *http.Client
	documents        *http.Client
	userAgent        string
	documentPatterns []string
	maxDocumentBytes int64
	log              *slog.Logger
}

// NewClient builds a Client from the listing and HTTP settings.
func NewClient(listing config.ListingConfig, httpCfg config.HTTPConfig, log *slog.Logger) *Client {
	return &Client{
		pages:            newHTTPClient(httpCfg.PageTimeout),
		documents:        newHTTPClient(httpCfg.DocumentTimeout),
		userAgent:        listing.UserAgent,
		documentPatterns: listing.DocumentPatterns,
		maxDocumentBytes: httpCfg.MaxDocumentBytes,
		log:              logger.OrDiscard(log).With("component", "scraper"),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// get issues a GET and returns the response when the status is 200.
// Any failure wraps models.ErrTransport.
func (c *Client) get(ctx context.Context, hc *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad request for %s: %v", models.ErrTransport, target, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s: %v", models.ErrTransport, target, err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: failed to get %s: status code %d", models.ErrTransport, target, resp.StatusCode)
	}
	return resp, nil
}
