package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const acmeTemplates = `
generic:
  name: generic
  fields:
    total:
      - priority: 10
        pattern: '(?i)total\s+({{money}})'
  line_items:
    strategies: [generic]
templates:
  - name: acme
    company: Acme Widgets
    signatures:
      - [acme, widget]
`

func testConfig(dir string) *common.Config {
	return &common.Config{
		Engine: common.EngineConfig{
			MinTextChars:     50,
			RasterScale:      2,
			OCRLanguage:      "eng",
			ToleranceRatio:   0.10,
			ToleranceFloor:   1,
			DescriptionLimit: 100,
		},
		OCR:   common.OCRConfig{Backend: "tesseract"},
		Store: common.StoreConfig{Driver: "bolt", DSN: filepath.Join(dir, "records.bolt")},
		Queue: common.QueueConfig{Workers: 1, Size: 4},
	}
}

var _ = Describe("App", func() {
	var (
		ctx    context.Context
		dir    string
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Describe("BuildEngine", func() {
		It("loads vendor templates from a file", func() {
			path := filepath.Join(dir, "templates.yaml")
			Expect(os.WriteFile(path, []byte(acmeTemplates), 0o600)).To(Succeed())
			cfg := testConfig(dir)
			cfg.Engine.TemplatesFile = path

			eng, err := BuildEngine(ctx, cfg, false, logger)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(eng.Close)

			res, err := eng.Run(ctx, entity.SourceDocument{
				Filename: "acme.txt",
				Data:     []byte("ACME Widget Works\nTotal 10.00\n"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Template).To(Equal("acme"))
			Expect(res.Record.TotalAmount).To(Equal(10.0))
		})

		It("fails on a missing templates file", func() {
			cfg := testConfig(dir)
			cfg.Engine.TemplatesFile = filepath.Join(dir, "missing.yaml")
			_, err := BuildEngine(ctx, cfg, false, logger)
			Expect(err).To(MatchError(ContainSubstring("load templates")))
		})

		It("rejects templates naming an unknown line item strategy", func() {
			path := filepath.Join(dir, "templates.yaml")
			bad := strings.Replace(acmeTemplates, "strategies: [generic]", "strategies: [generic, columnar]", 1)
			Expect(os.WriteFile(path, []byte(bad), 0o600)).To(Succeed())
			cfg := testConfig(dir)
			cfg.Engine.TemplatesFile = path

			_, err := BuildEngine(ctx, cfg, false, logger)
			Expect(err).To(MatchError(ContainSubstring(`generic: "columnar"`)))
		})

		It("rejects an unknown OCR backend", func() {
			cfg := testConfig(dir)
			cfg.OCR.Backend = "paddle"
			_, err := BuildEngine(ctx, cfg, true, logger)
			Expect(err).To(MatchError(ContainSubstring("ocr backend")))
		})
	})

	Describe("New", func() {
		It("rejects invalid configuration", func() {
			cfg := testConfig(dir)
			cfg.Store.Driver = "mysql"
			_, err := New(ctx, cfg, logger)
			Expect(errors.Is(err, common.ErrInvalidInput)).To(BeTrue())
		})

		It("wires the processor to the store", func() {
			a, err := New(ctx, testConfig(dir), logger)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(a.Close)

			path := filepath.Join(dir, "invoice.txt")
			Expect(os.WriteFile(path, []byte("Invoice 9165009\n10 EA STEEL SHEET 66.50 665.00\n"), 0o600)).To(Succeed())

			out, err := a.Processor.ProcessFile(ctx, path, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Record.Status).To(Equal(constants.RecordStatusExtracted))

			stored, err := a.Records.FindByHash(ctx, out.Record.ContentHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Record.DocumentID).To(Equal("9165009"))
		})
	})
})
