package periods_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tidepool-org/hydration/periods"
	"github.com/tidepool-org/hydration/timeline"
	timelineTest "github.com/tidepool-org/hydration/timeline/test"
)

var _ = Describe("Bucketizer", func() {
	var bucketizer *periods.Bucketizer
	var day time.Time

	at := func(hour, minute int) time.Time {
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}

	BeforeEach(func() {
		bucketizer = periods.NewBucketizer(nil, time.UTC)
		day = time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	})

	It("reports cumulative intake across windows", func() {
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("a", timeline.KindIntake, timeline.SourceManual, 200, at(8, 15)),
			timelineTest.Entry("b", timeline.KindIntake, timeline.SourceManual, 180, at(12, 30)),
		}, at(13, 0))

		Expect(buckets).To(HaveLen(4))
		Expect(*buckets[0].CumulativeIntakeMl).To(Equal(200.0))
		Expect(*buckets[1].CumulativeIntakeMl).To(Equal(380.0))
		Expect(buckets[0].IntakeMl).To(Equal(200.0))
		Expect(buckets[1].IntakeMl).To(Equal(180.0))
		Expect(buckets[1].CumulativeIntakeLimitMl).To(Equal(1000.0))
		Expect(buckets[1].IntakeLimitMl).To(Equal(550.0))
	})

	It("marks empty future windows as having no data", func() {
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("a", timeline.KindOutput, timeline.SourceUrinal, 210, at(9, 10)),
		}, at(11, 0))

		Expect(buckets[0].NoData).To(BeFalse())
		Expect(*buckets[0].CumulativeOutputMl).To(Equal(210.0))
		Expect(buckets[1].NoData).To(BeFalse())
		Expect(*buckets[1].CumulativeOutputMl).To(Equal(210.0))
		Expect(buckets[2].NoData).To(BeTrue())
		Expect(buckets[2].CumulativeOutputMl).To(BeNil())
		Expect(buckets[3].NoData).To(BeTrue())
		Expect(buckets[3].CumulativeOutputLimitMl).To(Equal(1600.0))
	})

	It("reports zero rather than no data for elapsed windows without events", func() {
		buckets := bucketizer.Bucketize(nil, at(15, 0))
		Expect(*buckets[0].CumulativeIntakeMl).To(Equal(0.0))
		Expect(*buckets[2].CumulativeIntakeMl).To(Equal(0.0))
		Expect(buckets[3].NoData).To(BeTrue())
	})

	It("assigns events outside every window to the nearest preceding window", func() {
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("late", timeline.KindIntake, timeline.SourceManual, 100, at(23, 30)),
			timelineTest.Entry("early", timeline.KindIntake, timeline.SourceManual, 50, at(5, 0)),
		}, at(23, 45))

		Expect(buckets[3].IntakeMl).To(Equal(100.0))
		Expect(buckets[0].IntakeMl).To(Equal(50.0))
	})

	It("uses half open membership", func() {
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("edge", timeline.KindIntake, timeline.SourceManual, 100, at(10, 0)),
		}, at(12, 0))
		Expect(buckets[0].IntakeMl).To(Equal(0.0))
		Expect(buckets[1].IntakeMl).To(Equal(100.0))
	})

	It("buckets by clock time in its location", func() {
		location := time.FixedZone("UTC+8", 8*60*60)
		bucketizer = periods.NewBucketizer(nil, location)
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("a", timeline.KindIntake, timeline.SourceManual, 100, at(1, 0)),
		}, at(12, 0))
		Expect(buckets[0].IntakeMl).To(Equal(100.0))
	})

	It("lets the last matching window win when windows overlap", func() {
		bucketizer = periods.NewBucketizer([]periods.Window{
			{Label: "morning", Start: 6 * time.Hour, End: 12 * time.Hour},
			{Label: "late morning", Start: 10 * time.Hour, End: 12 * time.Hour},
		}, time.UTC)
		buckets := bucketizer.Bucketize([]timeline.Entry{
			timelineTest.Entry("a", timeline.KindIntake, timeline.SourceManual, 100, at(11, 0)),
		}, at(12, 0))
		Expect(buckets[0].IntakeMl).To(Equal(0.0))
		Expect(buckets[1].IntakeMl).To(Equal(100.0))
	})

	Describe("Current", func() {
		It("returns the window containing now", func() {
			window, index := bucketizer.Current(at(15, 20))
			Expect(index).To(Equal(2))
			Expect(window.Label).To(Equal("14:00-18:00"))
		})

		It("falls back to the nearest preceding window at night", func() {
			_, index := bucketizer.Current(at(22, 30))
			Expect(index).To(Equal(3))
			_, index = bucketizer.Current(at(3, 0))
			Expect(index).To(Equal(0))
		})
	})
})
