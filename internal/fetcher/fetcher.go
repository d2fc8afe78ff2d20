// Package fetcher downloads source documents (chart PDFs, adoption pages,
// portal API responses) and reads tabular jurisdiction lists from CSV and
// XLSX files.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ahj-registry/internal/resilience"
)

// Fetcher downloads a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Document is a fetched response body, decoded to UTF-8 when the server
// declared another charset.
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	// Hash is the hex SHA-256 of the body as received, for change detection.
	Hash string
}

// ErrPermanent matches, via errors.Is, any fetch failure that will not
// succeed on retry (403, 404, 410).
var ErrPermanent = eris.New("fetcher: permanent failure")

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: http %d from %s", e.Code, e.URL)
}

// Is reports permanent statuses as ErrPermanent.
func (e *StatusError) Is(target error) bool {
	return target == ErrPermanent && resilience.IsPermanentHTTPStatus(e.Code)
}

// IsPermanent reports whether err is a fetch failure that should be skipped
// without retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || resilience.IsPermanent(err)
}

// StatusCode extracts the HTTP status from a fetch error, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// ContentHash returns the hex SHA-256 of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
