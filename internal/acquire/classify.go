package acquire

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Classify picks the acquisition channel. The file extension decides first;
// the declared media type is only consulted when the extension is unknown.
func Classify(filename, mediaType string) (constants.Channel, error) {
	if ch := constants.MapExtToChannel(filepath.Ext(filename)); ch != "" {
		return ch, nil
	}

	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mt == "":
	case strings.Contains(mt, "application/pdf"):
		return constants.PDF, nil
	case strings.Contains(mt, "spreadsheet"), strings.Contains(mt, "excel"), strings.Contains(mt, "text/csv"):
		return constants.SPREADSHEET, nil
	case strings.HasPrefix(mt, "image/"):
		return constants.IMAGE, nil
	case strings.HasPrefix(mt, "text/"), strings.HasPrefix(mt, "message/rfc822"):
		return constants.TEXT, nil
	}
	return "", common.NewUnsupportedChannel(filename, mediaType)
}
