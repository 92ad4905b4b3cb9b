package processor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/acquire"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

type recordingObserver struct{ outcomes []string }

func (r *recordingObserver) ObserveExtraction(_, outcome string, _ time.Duration, _ int) {
	r.outcomes = append(r.outcomes, outcome)
}

var _ = Describe("Processor", func() {
	var (
		ctx      context.Context
		dir      string
		repo     repository.RecordRepository
		proc     *Processor
		observed *recordingObserver
	)

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(body), 0o600)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		var err error
		repo, err = repository.OpenBolt(filepath.Join(dir, "records.bolt"), logger)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(repo.Close)

		engine := extract.New(acquire.NewPipeline(acquire.Config{}, logger), logger)
		proc = NewProcessor(logger, engine, repo, metrics.New())
		observed = &recordingObserver{}
		proc.observer = observed
	})

	It("extracts and stores a new document", func() {
		path := write("inv.txt", "Invoice 9165009\n10 EA STEEL SHEET 66.50 665.00")
		out, err := proc.ProcessFile(ctx, path, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Deduplicated).To(BeFalse())
		Expect(out.Record.Status).To(Equal(constants.RecordStatusExtracted))
		Expect(out.Record.Channel).To(Equal(constants.TEXT))
		Expect(out.Record.Method).To(Equal(constants.MethodRaw))
		Expect(out.Record.SourcePath).To(Equal(path))

		stored, err := repo.Get(ctx, out.Record.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Record.DocumentID).To(Equal("9165009"))
		Expect(stored.Record.TotalAmount).To(Equal(665.0))
		Expect(observed.outcomes).To(Equal([]string{metrics.OutcomeExtracted}))
	})

	It("tags the extraction log with the document's content hash", func() {
		var logs bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&logs, nil))
		engine := extract.New(acquire.NewPipeline(acquire.Config{}, logger), logger)
		p := NewProcessor(logger, engine, repo, metrics.New())

		body := "Invoice 9165010\n10 EA STEEL SHEET 66.50 665.00"
		_, err := p.ProcessFile(ctx, write("hashed.txt", body), false)
		Expect(err).NotTo(HaveOccurred())

		sum := sha256.Sum256([]byte(body))
		Expect(logs.String()).To(ContainSubstring(`"msg":"extract.done"`))
		Expect(logs.String()).To(ContainSubstring(`"content_hash":"` + hex.EncodeToString(sum[:]) + `"`))
	})

	It("returns the stored record for identical content", func() {
		body := "Invoice 9165009\n10 EA STEEL SHEET 66.50 665.00"
		first, err := proc.ProcessFile(ctx, write("a.txt", body), false)
		Expect(err).NotTo(HaveOccurred())
		second, err := proc.ProcessFile(ctx, write("b.txt", body), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Deduplicated).To(BeTrue())
		Expect(second.Record.ID).To(Equal(first.Record.ID))
		Expect(observed.outcomes).To(Equal([]string{metrics.OutcomeExtracted, metrics.OutcomeDeduplicated}))
	})

	It("re-extracts in place when forced", func() {
		body := "Invoice 9165009\n10 EA STEEL SHEET 66.50 665.00"
		first, err := proc.ProcessFile(ctx, write("a.txt", body), false)
		Expect(err).NotTo(HaveOccurred())
		again, err := proc.ProcessFile(ctx, write("a.txt", body), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Deduplicated).To(BeFalse())
		Expect(again.Record.ID).To(Equal(first.Record.ID))

		all, err := repo.List(ctx, repository.ListFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(1))
	})

	It("stores an empty record without failing", func() {
		out, err := proc.Process(ctx, Request{Filename: "memo.txt", Data: []byte("lorem ipsum dolor")})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Record.Status).To(Equal(constants.RecordStatusEmpty))
		Expect(out.Remediation).To(ContainSubstring("manually"))
	})

	It("stores a failed record and returns the error", func() {
		out, err := proc.Process(ctx, Request{Filename: "bundle.zip", Data: []byte("PK")})
		Expect(err).To(MatchError(common.ErrUnsupportedChannel))
		Expect(out.Record.Status).To(Equal(constants.RecordStatusFailed))
		Expect(out.Record.Error).NotTo(BeEmpty())
		Expect(out.Record.Record.Notes).To(ConsistOf(ContainSubstring("upload a PDF")))

		failed, err := repo.List(ctx, repository.ListFilter{Status: constants.RecordStatusFailed})
		Expect(err).NotTo(HaveOccurred())
		Expect(failed).To(HaveLen(1))
		Expect(observed.outcomes).To(Equal([]string{metrics.OutcomeFailed}))
	})

	It("reports unreadable paths as acquisition failures", func() {
		_, err := proc.ProcessFile(ctx, filepath.Join(dir, "missing.pdf"), false)
		Expect(err).To(MatchError(common.ErrAcquisitionFailed))
	})
})
