package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// PageCounter extracts the page count from a stored document. The billing
// path depends on it, so implementations must fail rather than guess.
type PageCounter interface {
	Count(path string) (int64, error)
}

var ErrNotPDF = errors.New("document is not a PDF")

// PDFPageCounter counts page objects in a PDF's object tree. It handles the
// plain (non-compressed object stream) layout that uploads from office
// tooling and browsers produce.
type PDFPageCounter struct{}

var (
	pdfHeader  = []byte("%PDF-")
	pageMarker = []byte("/Type/Page")
	pageSpaced = []byte("/Type /Page")
)

func (PDFPageCounter) Count(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}

	if !bytes.HasPrefix(data, pdfHeader) {
		return 0, ErrNotPDF
	}

	pages := countPageObjects(data, pageMarker) + countPageObjects(data, pageSpaced)
	if pages == 0 {
		return 0, fmt.Errorf("no page objects found in document")
	}
	return pages, nil
}

// countPageObjects counts occurrences of marker not followed by 's', which
// excludes the /Type /Pages tree nodes.
func countPageObjects(data, marker []byte) int64 {
	var count int64
	for off := 0; ; {
		i := bytes.Index(data[off:], marker)
		if i < 0 {
			break
		}
		pos := off + i + len(marker)
		if pos >= len(data) || data[pos] != 's' {
			count++
		}
		off = pos
	}
	return count
}
