package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// printedTextClient is the slice of the Computer Vision client used here.
type printedTextClient interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Azure recognizes printed text with Azure Computer Vision.
type Azure struct {
	client printedTextClient
	logger *slog.Logger
}

func NewAzure(endpoint, apiKey string, logger *slog.Logger) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: azure endpoint and key are required", ErrUnavailable)
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return newAzureWithClient(client, logger), nil
}

func newAzureWithClient(c printedTextClient, logger *slog.Logger) *Azure {
	if logger == nil {
		logger = slog.Default()
	}
	return &Azure{client: c, logger: logger}
}

func (a *Azure) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	result, err := a.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(&buf), azureLanguage(lang))
	if err != nil {
		return "", fmt.Errorf("%w: azure ocr: %w", ErrUnavailable, err)
	}

	text := ocrResultText(result)
	a.logger.Debug("azure ocr done", "chars", len(text))
	return text, nil
}

// ocrResultText joins words into lines and regions into paragraphs, in reading order.
func ocrResultText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var b strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// azureLanguage maps tesseract language codes to the service's codes.
func azureLanguage(lang string) computervision.OcrLanguages {
	switch lang {
	case "", "eng":
		return computervision.OcrLanguages(computervision.En)
	case "deu":
		return computervision.OcrLanguages("de")
	case "fra":
		return computervision.OcrLanguages("fr")
	case "spa":
		return computervision.OcrLanguages("es")
	case "ita":
		return computervision.OcrLanguages("it")
	case "por":
		return computervision.OcrLanguages("pt")
	case "nld":
		return computervision.OcrLanguages("nl")
	default:
		return computervision.OcrLanguages("unk")
	}
}
