// scraper/document.go
package scraper

import (
	"context"
	"fmt"
	"io"

	"github.com/gewnthar/agendawatch/models"
)

// FetchDocument downloads an agenda document into memory. Documents larger
// than the configured limit are rejected.
func (c *Client) FetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	c.log.Debug("downloading document", "url", documentURL)

	resp, err := c.get(ctx, c.documents, documentURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if c.maxDocumentBytes > 0 && resp.ContentLength > c.maxDocumentBytes {
		return nil, fmt.Errorf("%w: document %s is %d bytes, limit is %d", models.ErrTransport, documentURL, resp.ContentLength, c.maxDocumentBytes)
	}

	var body io.Reader = resp.Body
	if c.maxDocumentBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxDocumentBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read document %s: %v", models.ErrTransport, documentURL, err)
	}
	if c.maxDocumentBytes > 0 && int64(len(data)) > c.maxDocumentBytes {
		return nil, fmt.Errorf("%w: document %s exceeds %d bytes", models.ErrTransport, documentURL, c.maxDocumentBytes)
	}

	c.log.Debug("downloaded document", "url", documentURL, "bytes", len(data))
	return data, nil
}
