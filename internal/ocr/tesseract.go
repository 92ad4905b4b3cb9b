package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-|]{3,}\s*$`)

// Tesseract runs the tesseract CLI on a temporary PNG per page.
type Tesseract struct {
	bin         string
	tessdataDir string
	psm, oem    int
	runner      Runner
	logger      *slog.Logger
}

type TesseractOption func(*Tesseract)

// WithRunner replaces the exec-based runner.
func WithRunner(r Runner) TesseractOption {
	return func(t *Tesseract) { t.runner = r }
}

func NewTesseract(cfg Config, logger *slog.Logger, opts ...TesseractOption) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	t := &Tesseract{
		bin:         cfg.Tesseract,
		tessdataDir: cfg.TessdataDir,
		psm:         cfg.PSM,
		oem:         cfg.OEM,
		runner:      execRunner{logger: logger},
		logger:      logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Recognize runs: tesseract <png> stdout -l <lang> [--psm n] [--oem n] [--tessdata-dir d]
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	path, cleanup, err := writeTempPNG(img)
	if err != nil {
		return "", err
	}
	defer cleanup()

	out, errb, err := t.runner.Run(ctx, t.bin, t.args(path, lang)...)
	if err != nil {
		return "", fmt.Errorf("%w: tesseract: %w: %s", ErrUnavailable, err, truncate(string(errb), 512))
	}

	// minor cleanup of obvious line noise
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// Confidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (t *Tesseract) Confidence(ctx context.Context, img image.Image, lang string) (float32, error) {
	path, cleanup, err := writeTempPNG(img)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	out, _, err := t.runner.Run(ctx, t.bin, append(t.args(path, lang), "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

func (t *Tesseract) args(path, lang string) []string {
	if lang == "" {
		lang = "eng"
	}
	args := []string{path, "stdout", "-l", lang}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	if t.oem > 0 {
		args = append(args, "--oem", strconv.Itoa(t.oem))
	}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	return args
}

// meanTSVConfidence averages the conf column (index 10) over word rows.
func meanTSVConfidence(tsv string) float32 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}

func writeTempPNG(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "ie-ocr-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp png: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp png: %w", err)
	}
	return f.Name(), cleanup, nil
}
