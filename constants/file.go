package constants

import "strings"

// Channel is the acquisition route picked for a document.
type Channel string

const (
	PDF         Channel = "pdf"
	IMAGE       Channel = "image"
	SPREADSHEET Channel = "spreadsheet"
	TEXT        Channel = "text"
)

// PageMarker separates pages in acquired text.
const PageMarker = "\n\f\n"

// Channels lists every supported channel in classification order.
var Channels = []Channel{PDF, SPREADSHEET, TEXT, IMAGE}

// extChannels maps a normalized extension to its channel.
var extChannels = map[string]Channel{
	"pdf":  PDF,
	"xlsx": SPREADSHEET,
	"xlsm": SPREADSHEET,
	"xls":  SPREADSHEET,
	"csv":  SPREADSHEET,
	"eml":  TEXT,
	"msg":  TEXT,
	"txt":  TEXT,
	"docx": TEXT,
	"odt":  TEXT,
	"rtf":  TEXT,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"heic": IMAGE,
	"heif": IMAGE,
}

// AllowedExtensions holds the extensions picked up by directory ingestion.
var AllowedExtensions = func() map[string]struct{} {
	out := make(map[string]struct{}, len(extChannels))
	for ext := range extChannels {
		out[ext] = struct{}{}
	}
	return out
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToChannel returns the channel for an extension, or "" when unknown.
func MapExtToChannel(ext string) Channel {
	return extChannels[NormalizeExt(ext)]
}

func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// IsRichTextExt reports extensions that need a document reader rather than a plain decode.
func IsRichTextExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "docx", "odt", "rtf":
		return true
	}
	return false
}
