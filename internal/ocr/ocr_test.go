package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
	// existed records whether the image file was present during the call.
	existed bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	_, statErr := os.Stat(args[0])
	f.existed = statErr == nil
	return []byte(f.stdout), []byte("boom"), f.err
}

type fakeVision struct {
	result computervision.OcrResult
	lang   computervision.OcrLanguages
	body   []byte
}

func (f *fakeVision) RecognizePrintedTextInStream(_ context.Context, _ bool, r io.ReadCloser, lang computervision.OcrLanguages) (computervision.OcrResult, error) {
	f.lang = lang
	f.body, _ = io.ReadAll(r)
	return f.result, nil
}

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

type recordingRecognizer struct {
	seen image.Image
}

func (r *recordingRecognizer) Recognize(_ context.Context, img image.Image, _ string) (string, error) {
	r.seen = img
	return "ok", nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("Tesseract", func() {
	var (
		runner *fakeRunner
		tess   *Tesseract
	)

	BeforeEach(func() {
		runner = &fakeRunner{stdout: "INVOICE 1001\n-----\nTotal 10.00\n"}
		tess = NewTesseract(Config{PSM: 6, TessdataDir: "/td"}, slog.Default(), WithRunner(runner))
	})

	It("passes the page as a temp png and strips box noise", func() {
		text, err := tess.Recognize(context.Background(), testImage(4, 4), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("INVOICE 1001\n\nTotal 10.00\n"))
		Expect(runner.existed).To(BeTrue())

		args := runner.calls[0]
		Expect(args[0]).To(Equal("tesseract"))
		Expect(args[2:]).To(Equal([]string{"stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/td"}))
		_, statErr := os.Stat(args[1])
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("wraps command failures as unavailable", func() {
		runner.err = errors.New("exit status 1")
		_, err := tess.Recognize(context.Background(), testImage(2, 2), "eng")
		Expect(err).To(MatchError(ErrUnavailable))
	})

	It("averages the TSV confidence column", func() {
		runner.stdout = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
			"1\t1\t0\t0\t0\t0\t0\t0\t10\t10\t-1\t\n" +
			"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tINVOICE\n" +
			"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\t1001\n"
		c, err := tess.Confidence(context.Background(), testImage(2, 2), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeNumerically("~", 0.8, 0.001))
		Expect(runner.calls[0][len(runner.calls[0])-1]).To(Equal("tsv"))
	})
})

var _ = Describe("Azure", func() {
	It("joins words and lines in reading order", func() {
		vision := &fakeVision{result: computervision.OcrResult{
			Regions: &[]computervision.OcrRegion{{
				Lines: &[]computervision.OcrLine{
					{Words: &[]computervision.OcrWord{{Text: ptr("Invoice")}, {Text: ptr("9165009")}}},
					{Words: &[]computervision.OcrWord{{Text: ptr("Total")}, {Text: ptr("$3,431.58")}}},
				},
			}},
		}}
		az := newAzureWithClient(vision, nil)

		text, err := az.Recognize(context.Background(), testImage(2, 2), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Invoice 9165009\nTotal $3,431.58"))
		Expect(vision.lang).To(Equal(computervision.OcrLanguages("en")))
		Expect(vision.body).NotTo(BeEmpty())
	})

	It("returns empty text for an empty result", func() {
		az := newAzureWithClient(&fakeVision{}, nil)
		text, err := az.Recognize(context.Background(), testImage(2, 2), "deu")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(BeEmpty())
	})

	DescribeTable("maps tesseract language codes",
		func(lang string, want computervision.OcrLanguages) {
			Expect(azureLanguage(lang)).To(Equal(want))
		},
		Entry("default", "", computervision.OcrLanguages("en")),
		Entry("english", "eng", computervision.OcrLanguages("en")),
		Entry("german", "deu", computervision.OcrLanguages("de")),
		Entry("unknown", "xyz", computervision.OcrLanguages("unk")),
	)

	It("requires credentials", func() {
		_, err := NewAzure("", "", nil)
		Expect(err).To(MatchError(ErrUnavailable))
	})
})

var _ = Describe("Gemini", func() {
	It("sends the page and returns the transcription", func() {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("```text\nNET 30\n```")}},
			}},
		}}
		g := newGeminiWithModel(gen, nil)

		text, err := g.Recognize(context.Background(), testImage(2, 2), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("NET 30"))
		Expect(gen.parts).To(HaveLen(2))
		Expect(g.Close()).To(Succeed())
	})

	It("maps model errors to unavailable", func() {
		g := newGeminiWithModel(&fakeGenerator{err: errors.New("quota")}, nil)
		_, err := g.Recognize(context.Background(), testImage(2, 2), "eng")
		Expect(err).To(MatchError(ErrUnavailable))
	})

	It("requires an api key", func() {
		_, err := NewGemini(context.Background(), "", "", nil)
		Expect(err).To(MatchError(ErrUnavailable))
	})
})

var _ = Describe("Preprocessing", func() {
	It("hands a grayscale, upscaled bitmap to the backend", func() {
		rec := &recordingRecognizer{}
		p := NewPreprocessing(rec)

		text, err := p.Recognize(context.Background(), testImage(100, 50), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("ok"))
		Expect(rec.seen.Bounds().Dx()).To(Equal(minOCRWidth))

		r, g, b, _ := rec.seen.At(10, 10).RGBA()
		Expect(r).To(Equal(g))
		Expect(g).To(Equal(b))
	})

	It("reports zero confidence for backends without a scorer", func() {
		c, err := NewPreprocessing(&recordingRecognizer{}).Confidence(context.Background(), testImage(2, 2), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeZero())
	})
})

var _ = Describe("New", func() {
	It("rejects unknown backends", func() {
		_, err := New(context.Background(), Config{Backend: "paper"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("builds a preprocessed tesseract by default", func() {
		r, err := New(context.Background(), Config{Preprocess: true}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeAssignableToTypeOf(&Preprocessing{}))
		Expect(Close(r)).To(Succeed())
	})
})

var _ = Describe("confidence", func() {
	It("scores invoice-like text above noise", func() {
		Expect(HeuristicConfidence("Invoice 1001 10/02/2025 Total $665.00")).To(BeNumerically(">", HeuristicConfidence("~~ ~~")))
	})

	It("weights backend scores when present", func() {
		Expect(Blend(0, 0.4)).To(BeNumerically("~", 0.4, 1e-6))
		Expect(Blend(1, 0.5)).To(BeNumerically("~", 0.85, 1e-6))
	})
})
