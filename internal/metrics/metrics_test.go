package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = New()
	})

	It("counts extractions by channel and outcome", func() {
		m.ObserveExtraction("pdf", OutcomeExtracted, 120*time.Millisecond, 2)
		m.ObserveExtraction("pdf", OutcomeExtracted, 80*time.Millisecond, 0)
		m.ObserveExtraction("", OutcomeFailed, time.Millisecond, 0)

		Expect(testutil.ToFloat64(m.extractions.WithLabelValues("pdf", OutcomeExtracted))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.extractions.WithLabelValues("unknown", OutcomeFailed))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.lineItemsDropped)).To(Equal(2.0))
	})

	It("tracks queue depth and active workers", func() {
		m.IncrementJobsInQueue()
		m.IncrementJobsInQueue()
		m.DecrementJobsInQueue()
		m.IncrementActiveWorkers()
		Expect(testutil.ToFloat64(m.jobsInQueue)).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.activeWorkers)).To(Equal(1.0))
	})

	It("is a no-op when nil", func() {
		var none *Metrics
		Expect(func() {
			none.ObserveExtraction("pdf", OutcomeEmpty, time.Second, 1)
			none.IncrementJobsInQueue()
			none.ObserveHTTP("/v1/extract", 200)
		}).NotTo(Panic())
	})

	It("serves the exposition format", func() {
		m.ObserveHTTP("/v1/extract", http.StatusOK)
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		body, _ := io.ReadAll(rec.Body)
		Expect(string(body)).To(ContainSubstring(`http_requests_total{path="/v1/extract",status="200"} 1`))
	})
})
