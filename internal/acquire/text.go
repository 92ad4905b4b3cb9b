package acquire

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/lu4p/cat"
	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// DocumentReader decodes text-channel files (plain text, email, rich text).
type DocumentReader interface {
	Text(data []byte, ext string) (string, error)
}

// TextReader handles txt, eml, msg and, through github.com/lu4p/cat, docx/odt/rtf.
type TextReader struct{}

func (TextReader) Text(data []byte, ext string) (string, error) {
	ext = constants.NormalizeExt(ext)
	switch {
	case ext == "eml":
		return emailText(data)
	case ext == "msg":
		return outlookText(data), nil
	case constants.IsRichTextExt(ext):
		return richText(data, ext)
	default:
		return decodePlain(data), nil
	}
}

// decodePlain strips a UTF-8 BOM and falls back to Windows-1252 for legacy exports.
func decodePlain(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

// emailText returns the subject and the text/plain body of an RFC 822 message.
func emailText(data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse email: %w", err)
	}

	var b strings.Builder
	dec := new(mime.WordDecoder)
	if from := msg.Header.Get("From"); from != "" {
		if d, err := dec.DecodeHeader(from); err == nil {
			from = d
		}
		b.WriteString("From: " + from + "\n")
	}
	if subj := msg.Header.Get("Subject"); subj != "" {
		if d, err := dec.DecodeHeader(subj); err == nil {
			subj = d
		}
		b.WriteString("Subject: " + subj + "\n")
	}
	b.WriteString("\n")

	body, err := plainBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	return b.String(), nil
}

// plainBody walks multipart bodies depth-first and returns the first text/plain
// part, falling back to tag-stripped text/html.
func plainBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		var html string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read email part: %w", err)
			}
			text, err := plainBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			switch {
			case pt == "text/html" && html == "":
				html = text
			case text != "":
				return text, nil
			}
		}
		return html, nil
	}

	raw, err := io.ReadAll(transferDecoder(encoding, r))
	if err != nil {
		return "", fmt.Errorf("read email body: %w", err)
	}
	switch mediaType {
	case "text/plain":
		return decodePlain(raw), nil
	case "text/html":
		return stripTags(decodePlain(raw)), nil
	default:
		return "", nil
	}
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

var (
	reTags     = regexp.MustCompile(`(?s)<(?:style|script)[^>]*>.*?</(?:style|script)>|<[^>]+>`)
	reBlockEnd = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/tr|/li|/h\d)>`)
	reCellEnd  = regexp.MustCompile(`(?i)</t[dh]>`)
)

func stripTags(html string) string {
	s := reBlockEnd.ReplaceAllString(html, "\n")
	s = reCellEnd.ReplaceAllString(s, " ")
	s = reTags.ReplaceAllString(s, "")
	r := strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
	return r.Replace(s)
}

// outlookText pulls readable runs out of an Outlook .msg compound file. Bodies
// are stored as UTF-16LE streams; short runs are OLE noise.
func outlookText(data []byte) string {
	const minRun = 4
	var runs []string

	var u16 []uint16
	flush16 := func() {
		if len(u16) >= minRun {
			runs = append(runs, string(utf16.Decode(u16)))
		}
		u16 = u16[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		c := uint16(data[i]) | uint16(data[i+1])<<8
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c < 0xD800 && c != 0x7f) {
			u16 = append(u16, c)
			continue
		}
		flush16()
	}
	flush16()

	var out []string
	for _, r := range runs {
		r = strings.TrimSpace(r)
		if len(r) >= minRun && printableRatio(r) > 0.9 {
			out = append(out, r)
		}
	}
	return strings.Join(out, "\n")
}

func printableRatio(s string) float64 {
	total, ok := 0, 0
	for _, r := range s {
		total++
		if r < 0x2000 {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

// richText hands docx/odt/rtf to cat, which only reads from a path.
func richText(data []byte, ext string) (string, error) {
	f, err := os.CreateTemp("", "ie-doc-*."+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(f.Name())
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}
