package ocr

import (
	"context"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the width below which bitmaps are upscaled before recognition.
const minOCRWidth = 1200

// Preprocessing enhances bitmaps (grayscale, contrast, sharpen, upscale) and
// forwards them to the wrapped Recognizer.
type Preprocessing struct {
	next Recognizer
}

func NewPreprocessing(next Recognizer) *Preprocessing {
	return &Preprocessing{next: next}
}

func (p *Preprocessing) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	return p.next.Recognize(ctx, Enhance(img), lang)
}

// Confidence forwards to the wrapped backend when it scores its own output.
func (p *Preprocessing) Confidence(ctx context.Context, img image.Image, lang string) (float32, error) {
	s, ok := p.next.(Scorer)
	if !ok {
		return 0, nil
	}
	return s.Confidence(ctx, Enhance(img), lang)
}

func (p *Preprocessing) Close() error {
	if c, ok := p.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Enhance applies the document clean-up chain used before recognition.
func Enhance(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	if w := img.Bounds().Dx(); w > 0 && w < minOCRWidth {
		img = imaging.Resize(img, minOCRWidth, 0, imaging.Lanczos)
	}
	return img
}
