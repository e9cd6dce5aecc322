package thresholds_test

import (
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/thresholds"
)

var _ = Describe("Table", func() {
	var table *thresholds.Table

	BeforeEach(func() {
		var err error
		table, err = thresholds.Default()
		Expect(err).ToNot(HaveOccurred())
	})

	It("declares every indicator for every group", func() {
		for _, group := range thresholds.Groups {
			for _, indicator := range thresholds.Indicators {
				_, err := table.Lookup(group, indicator)
				Expect(err).ToNot(HaveOccurred())
			}
		}
	})

	It("returns the clinical bands for the severe group", func() {
		rng, err := table.Lookup(thresholds.GroupSevere, thresholds.IndicatorUrine24h)
		Expect(err).ToNot(HaveOccurred())
		Expect(rng.Normal).To(Equal(thresholds.Interval{Min: 600, Max: 1200}))
		Expect(rng.Risk).To(Equal(thresholds.Interval{Min: 300, Max: 600}))
		Expect(rng.Emergency).To(Equal(thresholds.Interval{Min: 0, Max: 300}))
	})

	It("parses infinite upper bounds", func() {
		rng, err := table.Lookup(thresholds.GroupNone, thresholds.IndicatorNetIntake)
		Expect(err).ToNot(HaveOccurred())
		Expect(math.IsInf(rng.Emergency.Max, 1)).To(BeTrue())
	})

	It("returns daily limits per group", func() {
		limits, err := table.Limits(thresholds.GroupModerate)
		Expect(err).ToNot(HaveOccurred())
		Expect(limits).To(Equal(thresholds.Limits{IntakeMl: 2000, OutputMl: 1600}))
	})

	It("fails with a configuration error for an unknown group", func() {
		_, err := table.Lookup(thresholds.Group("stage_6"), thresholds.IndicatorUrine24h)
		Expect(thresholds.IsConfigurationError(err)).To(BeTrue())
	})

	Describe("Parse", func() {
		It("fails when an indicator is missing", func() {
			_, err := thresholds.Parse([]byte(`
groups:
  none:
    limits: {intakeMl: 2400, outputMl: 2000}
    indicators: {}
`))
			Expect(thresholds.IsConfigurationError(err)).To(BeTrue())
		})

		It("fails on malformed documents", func() {
			_, err := thresholds.Parse([]byte("groups: ["))
			Expect(thresholds.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("Coverage", func() {
		It("reports the gap above the normal single urine band", func() {
			Expect(table.Coverage()).To(ContainElement(thresholds.Issue{
				Group:     thresholds.GroupNone,
				Indicator: thresholds.IndicatorSingleUrine,
				Kind:      thresholds.IssueGap,
				Interval:  thresholds.Interval{Min: 400, Max: math.Inf(1)},
			}))
		})

		It("does not report contiguous bands", func() {
			for _, issue := range table.Coverage() {
				Expect(issue.Indicator == thresholds.IndicatorUrine24h && issue.Group == thresholds.GroupNone).To(BeFalse())
			}
		})
	})

	Describe("Load", func() {
		It("deep merges an override onto the built in table", func() {
			override := []byte(`
groups:
  severe:
    limits:
      intakeMl: 1200
    indicators:
      singleUrine:
        normal: {min: 60, max: .inf}
`)
			loaded, err := thresholds.Load(override, false)
			Expect(err).ToNot(HaveOccurred())

			limits, err := loaded.Limits(thresholds.GroupSevere)
			Expect(err).ToNot(HaveOccurred())
			Expect(limits).To(Equal(thresholds.Limits{IntakeMl: 1200, OutputMl: 1000}))

			rng, err := loaded.Lookup(thresholds.GroupSevere, thresholds.IndicatorSingleUrine)
			Expect(err).ToNot(HaveOccurred())
			Expect(rng.Normal.Min).To(Equal(60.0))
			Expect(math.IsInf(rng.Normal.Max, 1)).To(BeTrue())
			Expect(rng.Risk).To(Equal(thresholds.Interval{Min: 30, Max: 50}))
		})

		It("rejects an override that empties a band", func() {
			_, err := thresholds.Load([]byte(`
groups:
  none:
    indicators:
      urine24h:
        risk: {min: 900, max: 800}
`), false)
			Expect(thresholds.IsConfigurationError(err)).To(BeTrue())
		})

		It("rejects the built in table in strict mode", func() {
			_, err := thresholds.Load(nil, true)
			Expect(thresholds.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("NewTable", func() {
		It("reads the override file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "override.yaml")
			Expect(os.WriteFile(path, []byte("groups: {none: {limits: {outputMl: 1900}}}"), 0o600)).To(Succeed())

			loaded, err := thresholds.NewTable(&thresholds.Config{OverrideFile: path}, zap.NewNop().Sugar())
			Expect(err).ToNot(HaveOccurred())
			limits, err := loaded.Limits(thresholds.GroupNone)
			Expect(err).ToNot(HaveOccurred())
			Expect(limits.OutputMl).To(Equal(1900.0))
		})

		It("fails when the override file does not exist", func() {
			_, err := thresholds.NewTable(&thresholds.Config{OverrideFile: "/does/not/exist.yaml"}, zap.NewNop().Sugar())
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("GroupFromStage", func() {
	stage := func(s int) *int { return &s }

	DescribeTable("maps registration data to a group",
		func(isCKD bool, s *int, expected thresholds.Group) {
			group, err := thresholds.GroupFromStage(isCKD, s)
			Expect(err).ToNot(HaveOccurred())
			Expect(group).To(Equal(expected))
		},
		Entry("non ckd", false, stage(4), thresholds.GroupNone),
		Entry("unknown stage", true, nil, thresholds.GroupNone),
		Entry("stage 1", true, stage(1), thresholds.GroupMildModerate),
		Entry("stage 2", true, stage(2), thresholds.GroupMildModerate),
		Entry("stage 3", true, stage(3), thresholds.GroupModerate),
		Entry("stage 4", true, stage(4), thresholds.GroupSevere),
		Entry("stage 5", true, stage(5), thresholds.GroupSevere),
	)

	It("rejects stages outside 1 to 5", func() {
		_, err := thresholds.GroupFromStage(true, stage(6))
		Expect(err).To(MatchError(thresholds.ErrInvalidStage))
	})
})
