package patients

import (
	"math"
	"time"

	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/periods"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

type Profile struct {
	Id          string            `json:"id"`
	Name        string            `json:"name"`
	Meta        string            `json:"meta,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	Group       thresholds.Group  `json:"group"`
	Limits      thresholds.Limits `json:"limits"`
	CaregiverId string            `json:"caregiverId,omitempty"`
	BedNumber   string            `json:"bedNumber,omitempty"`
}

type Dashboard struct {
	Patient            Profile                        `json:"patient"`
	Status             status.Status                  `json:"status"`
	Verdicts           []status.Verdict               `json:"verdicts"`
	Readings           status.Readings                `json:"readings"`
	Rollup             timeline.Rollup                `json:"rollup"`
	IntakePercent      int                            `json:"intakePercent"`
	OutputPercent      int                            `json:"outputPercent"`
	IntakeRatioPercent int                            `json:"intakeRatioPercent"`
	OutputRatioPercent int                            `json:"outputRatioPercent"`
	CurrentPeriod      CurrentPeriod                  `json:"currentPeriod"`
	Timeline           []timeline.Entry               `json:"timeline"`
	LastEventTime      *time.Time                     `json:"lastEventTime,omitempty"`
	Discarded          map[timeline.DiscardReason]int `json:"discarded,omitempty"`
	EvaluatedTime      time.Time                      `json:"evaluatedTime"`
}

// CurrentPeriod describes the window the clock is in and what happened in it.
type CurrentPeriod struct {
	Label         string  `json:"label"`
	IntakeMl      float64 `json:"intakeMl"`
	OutputMl      float64 `json:"outputMl"`
	IntakeLimitMl float64 `json:"intakeLimitMl"`
	OutputLimitMl float64 `json:"outputLimitMl"`
	IntakePercent int     `json:"intakePercent"`
	OutputPercent int     `json:"outputPercent"`
}

type PeriodsView struct {
	PatientId string           `json:"patientId"`
	Buckets   []periods.Bucket `json:"buckets"`
	Current   CurrentPeriod    `json:"current"`
}

// Evaluator turns a stored patient into the views shown to caregivers.
type Evaluator struct {
	Table      *thresholds.Table
	Bucketizer *periods.Bucketizer
}

func NewEvaluator(table *thresholds.Table, bucketizer *periods.Bucketizer) *Evaluator {
	return &Evaluator{Table: table, Bucketizer: bucketizer}
}

func (e *Evaluator) Dashboard(patient Patient, now time.Time) (*Dashboard, error) {
	readings := Readings(patient, now)
	result, verdicts, err := status.ClassifyDetailed(e.Table, patient.Group, readings)
	if err != nil {
		return nil, err
	}

	rollup := timeline.ComputeRollup(patient.Entries)
	entries := RefreshTimeAgo(patient.Entries, now)

	dashboard := &Dashboard{
		Patient:            ProfileOf(patient),
		Status:             result,
		Verdicts:           verdicts,
		Readings:           readings,
		Rollup:             rollup,
		IntakePercent:      Percent(rollup.TotalIntake, patient.Limits.IntakeMl),
		OutputPercent:      Percent(rollup.TotalOutput, patient.Limits.OutputMl),
		IntakeRatioPercent: 50,
		OutputRatioPercent: 50,
		CurrentPeriod:      e.currentPeriod(patient, now),
		Timeline:           entries,
		EvaluatedTime:      now,
	}
	if total := rollup.TotalIntake + rollup.TotalOutput; total > 0 {
		dashboard.IntakeRatioPercent = Percent(rollup.TotalIntake, total)
		dashboard.OutputRatioPercent = Percent(rollup.TotalOutput, total)
	}
	for _, entry := range entries {
		if entry.HasTimestamp() {
			timestamp := *entry.Timestamp
			dashboard.LastEventTime = &timestamp
			break
		}
	}

	return dashboard, nil
}

func (e *Evaluator) Periods(patient Patient, now time.Time) *PeriodsView {
	return &PeriodsView{
		PatientId: patient.Id,
		Buckets:   e.Bucketizer.Bucketize(patient.Entries, now),
		Current:   e.currentPeriod(patient, now),
	}
}

func (e *Evaluator) currentPeriod(patient Patient, now time.Time) CurrentPeriod {
	window, index := e.Bucketizer.Current(now)
	buckets := e.Bucketizer.Bucketize(patient.Entries, now)
	bucket := buckets[index]
	return CurrentPeriod{
		Label:         window.Label,
		IntakeMl:      bucket.IntakeMl,
		OutputMl:      bucket.OutputMl,
		IntakeLimitMl: window.IntakeLimitMl,
		OutputLimitMl: window.OutputLimitMl,
		IntakePercent: Percent(bucket.IntakeMl, window.IntakeLimitMl),
		OutputPercent: Percent(bucket.OutputMl, window.OutputLimitMl),
	}
}

func ProfileOf(patient Patient) Profile {
	return Profile{
		Id:          patient.Id,
		Name:        patient.Name,
		Meta:        patient.Meta(),
		Stage:       patient.StageLabel(),
		Group:       patient.Group,
		Limits:      patient.Limits,
		CaregiverId: patient.CaregiverId,
		BedNumber:   patient.BedNumber,
	}
}

// Percent is the rounded share of value in limit, zero when there is no limit.
func Percent(value, limit float64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(value / limit * 100))
}

// RefreshTimeAgo recomputes the relative display time of timestamped entries.
func RefreshTimeAgo(entries []timeline.Entry, now time.Time) []timeline.Entry {
	refreshed := make([]timeline.Entry, len(entries))
	for i, entry := range entries {
		if entry.HasTimestamp() {
			entry.TimeAgo = normalize.TimeAgo(*entry.Timestamp, now)
		}
		refreshed[i] = entry
	}
	return refreshed
}
