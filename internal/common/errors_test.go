package common

import (
	"context"
	"errors"
	"fmt"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Describe("Errors", func() {
	It("keeps both the sentinel and the cause reachable", func() {
		err := NewAcquisitionFailed("read invoice.pdf", io.ErrUnexpectedEOF)
		Expect(errors.Is(err, ErrAcquisitionFailed)).To(BeTrue())
		Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
		Expect(err.Code).To(Equal(CodeAcquisitionFailed))
		Expect(err.Error()).To(ContainSubstring("read invoice.pdf"))
	})

	It("works without a cause", func() {
		err := NewScannedUnreadable("no text", nil)
		Expect(errors.Is(err, ErrScannedDocumentUnreadable)).To(BeTrue())
		Expect(errors.Is(err, ErrAcquisitionFailed)).To(BeFalse())
	})

	DescribeTable("Remediation",
		func(err error, want string) {
			Expect(Remediation(err)).To(ContainSubstring(want))
		},
		Entry("unsupported", NewUnsupportedChannel("a.zip", "application/zip"), "upload a PDF"),
		Entry("scanned", NewScannedUnreadable("blank", nil), "rescan"),
		Entry("acquisition", NewAcquisitionFailed("broken", nil), "re-export"),
		Entry("no data", NewNoDataExtracted(), "manually"),
	)

	It("has no remediation for nil or unrelated errors", func() {
		Expect(Remediation(nil)).To(BeEmpty())
		Expect(Remediation(io.EOF)).To(BeEmpty())
	})

	DescribeTable("ToStatus",
		func(err error, code codes.Code) {
			Expect(status.Code(ToStatus(err))).To(Equal(code))
		},
		Entry("unsupported", NewUnsupportedChannel("a.zip", ""), codes.InvalidArgument),
		Entry("validation", NewValidator().Field("id", "", Required).Error(), codes.InvalidArgument),
		Entry("scanned", NewScannedUnreadable("blank", nil), codes.FailedPrecondition),
		Entry("not found", fmt.Errorf("record: %w", ErrNotFound), codes.NotFound),
		Entry("other", errors.New("boom"), codes.Internal),
		Entry("already a status", InvalidArgumentError("bad id"), codes.InvalidArgument),
	)

	It("passes nil through", func() {
		Expect(ToStatus(nil)).To(BeNil())
	})
})

var _ = Describe("Context", func() {
	It("generates a request id once", func() {
		ctx, id := EnsureRequestID(context.Background())
		Expect(id).NotTo(BeEmpty())
		again, same := EnsureRequestID(ctx)
		Expect(same).To(Equal(id))
		Expect(RequestIDFromContext(again)).To(Equal(id))
	})

	It("carries the content hash", func() {
		ctx := WithContentHash(context.Background(), "abc")
		Expect(ContentHashFromContext(ctx)).To(Equal("abc"))
		Expect(ContentHashFromContext(context.Background())).To(BeEmpty())
	})
})
