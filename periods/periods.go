package periods

import (
	"fmt"
	"time"

	"github.com/tidepool-org/hydration/pointer"
	"github.com/tidepool-org/hydration/timeline"
)

// Window is a named daily clock time range [Start, End), expressed as offsets
// from midnight, with its baseline intake and output.
type Window struct {
	Label         string        `json:"label"`
	Start         time.Duration `json:"-"`
	End           time.Duration `json:"-"`
	IntakeLimitMl float64       `json:"intakeLimitMl"`
	OutputLimitMl float64       `json:"outputLimitMl"`
}

func (w Window) Contains(offset time.Duration) bool {
	return offset >= w.Start && offset < w.End
}

func (w Window) StartClock() string {
	return clock(w.Start)
}

func (w Window) EndClock() string {
	return clock(w.End)
}

func clock(offset time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(offset.Hours()), int(offset.Minutes())%60)
}

var DefaultWindows = []Window{
	{Label: "06:00-10:00", Start: 6 * time.Hour, End: 10 * time.Hour, IntakeLimitMl: 450, OutputLimitMl: 350},
	{Label: "10:00-14:00", Start: 10 * time.Hour, End: 14 * time.Hour, IntakeLimitMl: 550, OutputLimitMl: 450},
	{Label: "14:00-18:00", Start: 14 * time.Hour, End: 18 * time.Hour, IntakeLimitMl: 550, OutputLimitMl: 450},
	{Label: "18:00-22:00", Start: 18 * time.Hour, End: 22 * time.Hour, IntakeLimitMl: 350, OutputLimitMl: 350},
}

// Bucket holds the sums of one window. Cumulative values run from the first
// window of the day and are the values plotted on the trend; the window values
// only cover the window itself. Cumulative values are nil when NoData is set.
type Bucket struct {
	Label                   string   `json:"label"`
	Start                   string   `json:"start"`
	End                     string   `json:"end"`
	IntakeMl                float64  `json:"intakeMl"`
	OutputMl                float64  `json:"outputMl"`
	IntakeLimitMl           float64  `json:"intakeLimitMl"`
	OutputLimitMl           float64  `json:"outputLimitMl"`
	CumulativeIntakeMl      *float64 `json:"cumulativeIntakeMl"`
	CumulativeOutputMl      *float64 `json:"cumulativeOutputMl"`
	CumulativeIntakeLimitMl float64  `json:"cumulativeIntakeLimitMl"`
	CumulativeOutputLimitMl float64  `json:"cumulativeOutputLimitMl"`
	EventCount              int      `json:"eventCount"`
	NoData                  bool     `json:"noData"`
}

type Bucketizer struct {
	Windows  []Window
	Location *time.Location
}

func NewBucketizer(windows []Window, location *time.Location) *Bucketizer {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	if location == nil {
		location = time.UTC
	}
	return &Bucketizer{Windows: windows, Location: location}
}

// Bucketize sums the timeline into the windows by clock time. Entries without a
// timestamp cannot be placed and are skipped.
func (b *Bucketizer) Bucketize(entries []timeline.Entry, now time.Time) []Bucket {
	if len(b.Windows) == 0 {
		return nil
	}

	buckets := make([]Bucket, len(b.Windows))
	for i, window := range b.Windows {
		buckets[i] = Bucket{
			Label:         window.Label,
			Start:         window.StartClock(),
			End:           window.EndClock(),
			IntakeLimitMl: window.IntakeLimitMl,
			OutputLimitMl: window.OutputLimitMl,
		}
	}

	for _, entry := range entries {
		if !entry.HasTimestamp() {
			continue
		}
		i := b.index(b.offset(*entry.Timestamp))
		switch entry.Kind {
		case timeline.KindIntake:
			buckets[i].IntakeMl += entry.ValueMl
		case timeline.KindOutput:
			buckets[i].OutputMl += entry.ValueMl
		default:
			continue
		}
		buckets[i].EventCount++
	}

	nowOffset := b.offset(now)
	var intake, output, intakeLimit, outputLimit float64
	for i := range buckets {
		intake += buckets[i].IntakeMl
		output += buckets[i].OutputMl
		intakeLimit += buckets[i].IntakeLimitMl
		outputLimit += buckets[i].OutputLimitMl
		buckets[i].CumulativeIntakeLimitMl = intakeLimit
		buckets[i].CumulativeOutputLimitMl = outputLimit

		if buckets[i].EventCount == 0 && b.Windows[i].Start > nowOffset {
			buckets[i].NoData = true
			continue
		}
		buckets[i].CumulativeIntakeMl = pointer.FromAny(intake)
		buckets[i].CumulativeOutputMl = pointer.FromAny(output)
	}

	return buckets
}

// Current returns the window that contains now, using the same placement rule
// as Bucketize.
func (b *Bucketizer) Current(now time.Time) (Window, int) {
	i := b.index(b.offset(now))
	return b.Windows[i], i
}

func (b *Bucketizer) offset(t time.Time) time.Duration {
	local := t.In(b.Location)
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
}

// index finds the window of a clock offset. The last matching window wins. An
// offset outside every window belongs to the nearest preceding window, and to
// the earliest window when it precedes all of them.
func (b *Bucketizer) index(offset time.Duration) int {
	match := -1
	for i, window := range b.Windows {
		if window.Contains(offset) {
			match = i
		}
	}
	if match >= 0 {
		return match
	}

	earliest := 0
	for i, window := range b.Windows {
		if window.Start < b.Windows[earliest].Start {
			earliest = i
		}
		if window.End <= offset && (match < 0 || window.End > b.Windows[match].End) {
			match = i
		}
	}
	if match < 0 {
		return earliest
	}
	return match
}
