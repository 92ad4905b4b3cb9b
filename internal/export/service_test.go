package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

var _ = Describe("Service", func() {
	var (
		ctx  context.Context
		repo repository.RecordRepository
		svc  *Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		var err error
		repo, err = repository.OpenBolt(filepath.Join(GinkgoT().TempDir(), "export.bolt"), logger)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(repo.Close)
		svc = NewService(repo, logger)

		Expect(repo.Save(ctx, &entity.StoredRecord{
			Filename: "acme.pdf", ContentHash: "h1", Status: constants.RecordStatusExtracted,
			Record: entity.ExtractedRecord{
				CounterpartyName: "ACME STEEL SUPPLY LLC",
				DocumentID:       "9165009",
				LineItems: []entity.LineItem{
					{Quantity: 10, Description: "STEEL SHEET", UnitPrice: 66.5, Amount: 665},
					{Quantity: 2, Description: "FREIGHT, INBOUND", UnitPrice: 10, Amount: 20},
				},
				TotalAmount: 685,
				Notes:       []string{"total derived from the sum of line items"},
			},
		})).To(Succeed())
		Expect(repo.Save(ctx, &entity.StoredRecord{
			Filename: "memo.txt", ContentHash: "h2", Status: constants.RecordStatusEmpty,
			Record: entity.ExtractedRecord{LineItems: []entity.LineItem{}},
		})).To(Succeed())
	})

	It("writes a workbook with record and line item sheets", func() {
		data, err := svc.ExportXLSX(ctx, repository.ListFilter{})
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		Expect(f.GetSheetList()).To(Equal([]string{"Records", "Line Items"}))

		recRows, err := f.GetRows("Records")
		Expect(err).NotTo(HaveOccurred())
		Expect(recRows).To(HaveLen(3))
		Expect(recRows[0][3]).To(Equal("Counterparty"))

		itemRows, err := f.GetRows("Line Items")
		Expect(err).NotTo(HaveOccurred())
		Expect(itemRows).To(HaveLen(3))
		Expect(itemRows[1][4]).To(Equal("STEEL SHEET"))
		Expect(itemRows[2][2]).To(Equal("2"))
	})

	It("honors the status filter", func() {
		data, err := svc.ExportXLSX(ctx, repository.ListFilter{Status: constants.RecordStatusEmpty})
		Expect(err).NotTo(HaveOccurred())
		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		rows, _ := f.GetRows("Records")
		Expect(rows).To(HaveLen(2))
		Expect(rows[1][1]).To(Equal("memo.txt"))
	})

	It("writes one CSV row per line item and one per empty record", func() {
		data, err := svc.ExportCSV(ctx, repository.ListFilter{})
		Expect(err).NotTo(HaveOccurred())
		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		Expect(rows[0][9]).To(Equal("Total"))

		var items []string
		for _, r := range rows[1:] {
			items = append(items, r[12])
		}
		Expect(items).To(ConsistOf("STEEL SHEET", "FREIGHT, INBOUND", ""))
		Expect(string(data)).To(ContainSubstring(`"FREIGHT, INBOUND"`))
	})

	It("surfaces store failures", func() {
		svc = NewService(failingRepo{}, nil)
		_, err := svc.ExportCSV(ctx, repository.ListFilter{})
		Expect(err).To(MatchError(ContainSubstring("query records")))
	})

	It("truncates long notes by rune", func() {
		Expect(truncate(strings.Repeat("é", 10), 5)).To(Equal("éééé…"))
		Expect(truncate("short", 5)).To(Equal("short"))
	})
})

type failingRepo struct{ repository.RecordRepository }

func (failingRepo) List(context.Context, repository.ListFilter) ([]*entity.StoredRecord, error) {
	return nil, errors.New("boom")
}
