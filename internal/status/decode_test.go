package status_test

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/healthdash/internal/status"
)

var _ = Describe("Decode", func() {
	Context("array of records", func() {
		It("should decode every field", func() {
			services, err := status.Decode([]byte(`[
				{"name":"api","status":"OK","last_error":null,"restarts_last_hour":0,"last_checked":"12:00:00"},
				{"name":"db","status":"CRITICAL","last_error":"connection refused","restarts_last_hour":3,"last_checked":"12:00:01"}
			]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(Equal([]status.Service{
				{Name: "api", Status: "OK", LastChecked: "12:00:00"},
				{Name: "db", Status: "CRITICAL", LastError: "connection refused", RestartsLastHour: 3, LastChecked: "12:00:01"},
			}))
		})

		It("should keep records without a name", func() {
			services, err := status.Decode([]byte(`[{"status":"OK"}, null]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(HaveLen(2))
			Expect(services[0].Name).To(BeEmpty())
			Expect(services[1]).To(Equal(status.Service{}))
		})

		It("should format epoch last_checked values", func() {
			services, err := status.Decode([]byte(`[{"name":"api","status":"OK","last_checked":1700000000}]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services[0].LastChecked).To(Equal(status.FormatEpoch(1700000000, status.CheckedLayout)))
		})

		It("should accept fractional and string counters", func() {
			services, err := status.Decode([]byte(`[{"name":"a","restarts_last_hour":2.0},{"name":"b","restarts_last_hour":"4"}]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services[0].RestartsLastHour).To(Equal(2))
			Expect(services[1].RestartsLastHour).To(Equal(4))
		})

		It("should decode an empty array", func() {
			services, err := status.Decode([]byte(`[]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(BeEmpty())
		})
	})

	Context("mapping keyed by name", func() {
		It("should use the key as name and sort by it", func() {
			services, err := status.Decode([]byte(`{
				"runtime": {"status":"error","last_checked":"2024-05-01 10:00:00","error":"Error detectado en logs","restarted":true,"logs":"boom"},
				"avionics": {"status":"healthy","last_checked":"2024-05-01 10:00:00","error":null,"restarted":false,"logs":""}
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(HaveLen(2))
			Expect(services[0].Name).To(Equal("avionics"))
			Expect(services[0].Tier()).To(Equal(status.TierOK))
			Expect(services[1].Name).To(Equal("runtime"))
			Expect(services[1].LastError).To(Equal("Error detectado en logs"))
			Expect(services[1].Restarted).To(BeTrue())
			Expect(services[1].Logs).To(Equal("boom"))
			Expect(services[1].Tier()).To(Equal(status.TierError))
		})

		It("should decode an empty object", func() {
			services, err := status.Decode([]byte(`{}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(services).To(BeEmpty())
		})
	})

	It("should decode null as an empty collection", func() {
		services, err := status.Decode([]byte(" null \n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(services).NotTo(BeNil())
		Expect(services).To(BeEmpty())
	})

	DescribeTable("rejects malformed bodies",
		func(body string) {
			_, err := status.Decode([]byte(body))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, status.ErrMalformed)).To(BeTrue())
		},
		Entry("empty", ""),
		Entry("html", "<html>oops</html>"),
		Entry("scalar", `"OK"`),
		Entry("truncated", `[{"name":"api"`),
		Entry("nested status", `[{"name":"api","status":{"x":1}}]`),
		Entry("bad counter", `[{"name":"api","restarts_last_hour":"many"}]`),
		Entry("counter too large", `[{"name":"api","restarts_last_hour":1e20}]`),
		Entry("counter too small", `[{"name":"api","restarts_last_hour":-1e20}]`),
		Entry("numeric string too large", `[{"name":"api","restarts_last_hour":"9.3e18"}]`),
		Entry("other literal", `nope`),
	)
})
