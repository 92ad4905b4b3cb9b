// Package ocr wraps character-recognition backends behind one interface.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"
)

// Backend names accepted by New.
const (
	BackendTesseract = "tesseract"
	BackendAzure     = "azure"
	BackendGemini    = "gemini"
)

// ErrUnavailable reports a backend that cannot be reached or is not configured.
var ErrUnavailable = errors.New("ocr backend unavailable")

// Recognizer turns one page bitmap into text. Implementations are not required
// to be safe for concurrent use; callers recognize pages one at a time.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
}

// Scorer is implemented by backends that report their own word confidence (0..1).
type Scorer interface {
	Confidence(ctx context.Context, img image.Image, lang string) (float32, error)
}

type Config struct {
	Backend string // tesseract | azure | gemini; default tesseract

	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	AzureEndpoint string
	AzureKey      string

	GeminiAPIKey string
	GeminiModel  string

	Preprocess     bool
	RequestTimeout time.Duration
}

// New builds the configured backend, wrapped in Preprocessing when enabled.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		r   Recognizer
		err error
	)
	switch cfg.Backend {
	case "", BackendTesseract:
		r = NewTesseract(cfg, logger)
	case BackendAzure:
		r, err = NewAzure(cfg.AzureEndpoint, cfg.AzureKey, logger)
	case BackendGemini:
		r, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	default:
		return nil, fmt.Errorf("unknown ocr backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Preprocess {
		r = NewPreprocessing(r)
	}
	logger.Info("ocr backend ready", "backend", cfg.Backend, "preprocess", cfg.Preprocess)
	return r, nil
}

// Close releases r when the backend holds a client.
func Close(r Recognizer) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
