package cohort

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/store"
	"github.com/tidepool-org/hydration/timeline"
)

//go:generate mockgen --build_flags=--mod=mod -source=./cohort.go -destination=./test/mock_service.go -package test MockService

type Service interface {
	Dashboard(ctx context.Context, caregiverId string) (*Dashboard, error)
	// Patients returns the risk sorted patients of a caregiver, optionally only
	// those with the given status.
	Patients(ctx context.Context, caregiverId string, filter *status.Status) ([]PatientSummary, error)
}

type PatientSummary struct {
	Patient       patients.Profile       `json:"patient"`
	Status        status.Status          `json:"status"`
	Rollup        timeline.Rollup        `json:"rollup"`
	IntakePercent int                    `json:"intakePercent"`
	OutputPercent int                    `json:"outputPercent"`
	CurrentPeriod patients.CurrentPeriod `json:"currentPeriod"`
	LastEventTime *time.Time             `json:"lastEventTime,omitempty"`
}

type Stats struct {
	Total         int           `json:"total"`
	Emergency     int           `json:"emergency"`
	Risk          int           `json:"risk"`
	Normal        int           `json:"normal"`
	OverallStatus status.Status `json:"overallStatus"`
}

type Totals struct {
	TotalIntake        float64 `json:"totalIntake"`
	TotalOutput        float64 `json:"totalOutput"`
	TotalIntakeLimit   float64 `json:"totalIntakeLimit"`
	TotalOutputLimit   float64 `json:"totalOutputLimit"`
	AverageNetIntake   float64 `json:"averageNetIntake"`
	IntakePercent      int     `json:"intakePercent"`
	OutputPercent      int     `json:"outputPercent"`
	NeedAttentionCount int     `json:"needAttentionCount"`
}

type Dashboard struct {
	CaregiverId   string           `json:"caregiverId"`
	Stats         Stats            `json:"stats"`
	Totals        Totals           `json:"totals"`
	Patients      []PatientSummary `json:"patients"`
	EvaluatedTime time.Time        `json:"evaluatedTime"`
}

type Params struct {
	fx.In

	Patients patients.Service
	Cache    *Cache
	Clock    config.Clock
	Logger   *zap.SugaredLogger
}

type service struct {
	patients patients.Service
	cache    *Cache
	clock    config.Clock
	logger   *zap.SugaredLogger
}

var _ Service = &service{}

func NewService(p Params) Service {
	clock := p.Clock
	if clock == nil {
		clock = config.NewClock()
	}
	return &service{
		patients: p.Patients,
		cache:    p.Cache,
		clock:    clock,
		logger:   p.Logger,
	}
}

func (s *service) Dashboard(ctx context.Context, caregiverId string) (*Dashboard, error) {
	if dashboard, ok := s.cache.Get(caregiverId); ok {
		return dashboard, nil
	}

	list, err := s.patients.List(ctx, patients.Filter{CaregiverId: &caregiverId}, store.DefaultPagination())
	if err != nil {
		return nil, err
	}

	summaries := make([]PatientSummary, 0, len(list))
	for _, patient := range list {
		dashboard, err := s.patients.Dashboard(ctx, patient.Id)
		if err != nil {
			return nil, fmt.Errorf("unable to evaluate patient %s: %w", patient.Id, err)
		}
		summaries = append(summaries, Summarize(dashboard))
	}

	dashboard, err := Aggregate(caregiverId, summaries, s.clock())
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("evaluated caregiver dashboard", "caregiverId", caregiverId, "patients", dashboard.Stats.Total, "status", dashboard.Stats.OverallStatus)
	s.cache.Add(caregiverId, *dashboard)
	return dashboard, nil
}

func (s *service) Patients(ctx context.Context, caregiverId string, filter *status.Status) ([]PatientSummary, error) {
	dashboard, err := s.Dashboard(ctx, caregiverId)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return dashboard.Patients, nil
	}

	filtered := make([]PatientSummary, 0, len(dashboard.Patients))
	for _, summary := range dashboard.Patients {
		if summary.Status == *filter {
			filtered = append(filtered, summary)
		}
	}
	return filtered, nil
}

func Summarize(dashboard *patients.Dashboard) PatientSummary {
	return PatientSummary{
		Patient:       dashboard.Patient,
		Status:        dashboard.Status,
		Rollup:        dashboard.Rollup,
		IntakePercent: dashboard.IntakePercent,
		OutputPercent: dashboard.OutputPercent,
		CurrentPeriod: dashboard.CurrentPeriod,
		LastEventTime: dashboard.LastEventTime,
	}
}

// Aggregate counts the patients by status, derives the caregiver's overall
// status and sorts the patients by risk.
func Aggregate(caregiverId string, summaries []PatientSummary, now time.Time) (*Dashboard, error) {
	dashboard := &Dashboard{
		CaregiverId:   caregiverId,
		Patients:      SortByRisk(summaries),
		EvaluatedTime: now,
	}

	var netIntake float64
	for _, summary := range summaries {
		switch summary.Status {
		case status.Emergency:
			dashboard.Stats.Emergency++
		case status.Risk:
			dashboard.Stats.Risk++
		default:
			dashboard.Stats.Normal++
		}
		dashboard.Totals.TotalIntake += summary.Rollup.TotalIntake
		dashboard.Totals.TotalOutput += summary.Rollup.TotalOutput
		dashboard.Totals.TotalIntakeLimit += summary.Patient.Limits.IntakeMl
		dashboard.Totals.TotalOutputLimit += summary.Patient.Limits.OutputMl
		netIntake += summary.Rollup.NetIntake
	}

	overall, err := status.AggregateCohort(dashboard.Stats.Emergency, dashboard.Stats.Risk)
	if err != nil {
		return nil, err
	}
	dashboard.Stats.Total = len(summaries)
	dashboard.Stats.OverallStatus = overall

	if len(summaries) > 0 {
		dashboard.Totals.AverageNetIntake = netIntake / float64(len(summaries))
	}
	dashboard.Totals.IntakePercent = patients.Percent(dashboard.Totals.TotalIntake, dashboard.Totals.TotalIntakeLimit)
	dashboard.Totals.OutputPercent = patients.Percent(dashboard.Totals.TotalOutput, dashboard.Totals.TotalOutputLimit)
	dashboard.Totals.NeedAttentionCount = dashboard.Stats.Emergency + dashboard.Stats.Risk

	return dashboard, nil
}

// SortByRisk orders emergency before risk before normal. Within a status the
// patient with the higher net intake comes first.
func SortByRisk(summaries []PatientSummary) []PatientSummary {
	sorted := make([]PatientSummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Status != sorted[j].Status {
			return sorted[i].Status > sorted[j].Status
		}
		if sorted[i].Rollup.NetIntake != sorted[j].Rollup.NetIntake {
			return sorted[i].Rollup.NetIntake > sorted[j].Rollup.NetIntake
		}
		return sorted[i].Patient.Id < sorted[j].Patient.Id
	})
	return sorted
}
