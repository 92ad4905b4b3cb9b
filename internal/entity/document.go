package entity

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// SourceDocument is one uploaded file for the duration of a single extraction.
type SourceDocument struct {
	Filename  string
	MediaType string
	Data      []byte
	Channel   constants.Channel // filled by classification when empty
	PageCount int               // filled by acquisition for paged channels
}

// AcquiredText is the plain text produced from a SourceDocument.
type AcquiredText struct {
	Content string
	// PageBoundaries holds the byte offset in Content where each page starts.
	PageBoundaries []int
	Method         constants.AcquisitionMethod
	Pages          int
	Language       string
	// Confidence is 1 for text layers and an estimate in 0..1 for OCR output.
	Confidence float32
	Warnings   []string
	Duration   time.Duration
}

// Page returns the text of page i (0-based), or "" when out of range.
func (a AcquiredText) Page(i int) string {
	if i < 0 || i >= len(a.PageBoundaries) {
		return ""
	}
	end := len(a.Content)
	if i+1 < len(a.PageBoundaries) {
		end = a.PageBoundaries[i+1]
	}
	return strings.TrimSuffix(a.Content[a.PageBoundaries[i]:end], constants.PageMarker)
}
