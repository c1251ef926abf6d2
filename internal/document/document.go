// Package document validates uploaded listing PDFs.
package document

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes = 10 << 20

// ContentType is the only accepted media type.
const ContentType = "application/pdf"

var (
	ErrEmpty    = eris.New("document is empty")
	ErrTooLarge = eris.New("document too large")
	ErrNotPDF   = eris.New("document is not a PDF")
)

var pdfMagic = []byte("%PDF-")

// Validate checks that data is a non-empty, parsable PDF of at most maxBytes
// with at least one page. It returns the page count.
func Validate(data []byte, maxBytes int) (int, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	switch {
	case len(data) == 0:
		return 0, ErrEmpty
	case len(data) > maxBytes:
		return 0, eris.Wrapf(ErrTooLarge, "%d bytes, max %d", len(data), maxBytes)
	case !bytes.HasPrefix(data, pdfMagic):
		return 0, ErrNotPDF
	}

	pages, err := pageCount(data)
	if err != nil {
		return 0, eris.Wrap(ErrNotPDF, err.Error())
	}
	if pages < 1 {
		return 0, eris.Wrap(ErrNotPDF, "no pages")
	}
	return pages, nil
}

// pageCount parses the document structure. The reader panics on some
// malformed inputs, so a panic is reported as an error.
func pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// GenerateFilename returns the stored name for an upload made at now.
func GenerateFilename(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("expose-%d-%s.pdf", now.UnixMilli(), suffix)
}
