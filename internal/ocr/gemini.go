package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const transcribePrompt = `Transcribe all text in this document image exactly as printed.
Keep the original line breaks and the left-to-right order of table columns.
Do not summarize, translate, correct or add anything.
Return only the transcribed text, without markdown code blocks.`

// contentGenerator is the part of *genai.GenerativeModel used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini transcribes page bitmaps with a Gemini vision model.
type Gemini struct {
	client *genai.Client
	model  contentGenerator
	logger *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrUnavailable)
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	g := newGeminiWithModel(model, logger)
	g.client = client
	return g, nil
}

func newGeminiWithModel(m contentGenerator, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{model: m, logger: logger}
}

func (g *Gemini) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	prompt := transcribePrompt
	if lang != "" && lang != "eng" {
		prompt += "\nThe document language is " + lang + " (ISO 639-2)."
	}

	// genai.ImageData expects just the format suffix, not the full MIME type.
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", buf.Bytes()), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", ErrUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	text := strings.TrimSpace(out.String())
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
