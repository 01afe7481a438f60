// Package scan screens uploaded content against a clamd daemon before it
// reaches the object store.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected is returned when clamd flags the content.
var ErrInfected = errors.New("malicious content detected")

// ClamdScanner streams content to a clamd daemon.
type ClamdScanner struct {
	addr string
}

// NewClamd builds a scanner for the daemon at addr.
func NewClamd(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

// Scan streams r to clamd. ErrInfected when flagged, another error when the
// daemon is unreachable.
func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	results, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for result := range results {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if result.Status != clamd.RES_OK {
			return ErrInfected
		}
	}
	return nil
}
