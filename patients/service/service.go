package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/config"
	errors2 "github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/metrics"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/outbox"
	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/periods"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/store"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

// maxUpdateAttempts bounds the retries of an update that lost a concurrent write.
const maxUpdateAttempts = 5

var ErrMissingPatientId = fmt.Errorf("patient id %w", errors2.BadRequest)

type Params struct {
	fx.In

	Config     *config.Config
	Repository patients.Repository
	Table      *thresholds.Table
	Clock      config.Clock
	Logger     *zap.SugaredLogger
	Outbox     outbox.Repository   `optional:"true"`
	Listeners  []patients.Listener `group:"patientListeners"`
}

type service struct {
	config     *config.Config
	repo       patients.Repository
	table      *thresholds.Table
	clock      config.Clock
	logger     *zap.SugaredLogger
	outbox     outbox.Repository
	listeners  []patients.Listener
	location   *time.Location
	normalizer *normalize.Normalizer
	evaluator  *patients.Evaluator
}

var _ patients.Service = &service{}

func NewService(p Params) (patients.Service, error) {
	location, err := p.Config.Location()
	if err != nil {
		return nil, err
	}
	clock := p.Clock
	if clock == nil {
		clock = config.NewClock()
	}

	return &service{
		config:     p.Config,
		repo:       p.Repository,
		table:      p.Table,
		clock:      clock,
		logger:     p.Logger,
		outbox:     p.Outbox,
		listeners:  p.Listeners,
		location:   location,
		normalizer: normalize.New(location, clock),
		evaluator:  patients.NewEvaluator(p.Table, periods.NewBucketizer(nil, location)),
	}, nil
}

func (s *service) Register(ctx context.Context, registration patients.Registration) (*patients.Patient, error) {
	if err := registration.Validate(); err != nil {
		return nil, err
	}
	group, err := thresholds.GroupFromStage(registration.IsCKD, registration.GfrStage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", patients.ErrInvalidRegistration, err)
	}
	limits, err := s.table.Limits(group)
	if err != nil {
		return nil, err
	}

	id := registration.Id
	if id == "" {
		id = uuid.NewString()
	}
	now := s.clock()
	patient := patients.Patient{
		Id:          id,
		Name:        registration.Name,
		Age:         registration.Age,
		Weight:      registration.Weight,
		IsCKD:       registration.IsCKD,
		GfrStage:    registration.GfrStage,
		Group:       group,
		Limits:      limits,
		CaregiverId: registration.CaregiverId,
		BedNumber:   registration.BedNumber,
		Entries:     []timeline.Entry{},
		CreatedTime: now,
		UpdatedTime: now,
	}
	if registration.Weight != nil {
		weight := *registration.Weight
		patient.Measurements = []normalize.Measurements{{Weight: &weight, Timestamp: &now}}
	}

	s.logger.Infow("registering patient", "patientId", id, "group", group, "caregiverId", registration.CaregiverId)
	created, err := s.repo.Create(ctx, patient)
	if err != nil {
		return nil, err
	}

	s.notify(*created)
	return created, nil
}

func (s *service) Get(ctx context.Context, id string) (*patients.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter patients.Filter, pagination store.Pagination) ([]*patients.Patient, error) {
	return s.repo.List(ctx, filter, pagination)
}

func (s *service) Ingest(ctx context.Context, id string, records []normalize.Record) (*patients.Dashboard, error) {
	metrics.RecordsReceived.WithLabelValues(metrics.ChannelHTTP).Add(float64(len(records)))

	batch, malformed := patients.NewBatch(s.normalizer, records)
	return s.apply(ctx, id, batch, malformed)
}

func (s *service) IngestDevice(ctx context.Context, payload normalize.Record) (*patients.Dashboard, error) {
	metrics.RecordsReceived.WithLabelValues(metrics.ChannelFeed).Inc()

	record := normalize.DevicePayload(payload)
	id, _ := normalize.Canonicalize(record)["patientId"].(string)
	if id == "" {
		return nil, ErrMissingPatientId
	}

	batch := patients.Batch{}
	malformed := 0
	entry, measurements := s.normalizer.Normalize(record)
	if entry != nil {
		batch.Entries = append(batch.Entries, *entry)
	}
	if !measurements.Empty() {
		batch.Measurements = append(batch.Measurements, measurements)
	}
	if batch.Empty() {
		malformed++
	}

	return s.apply(ctx, id, batch, malformed)
}

func (s *service) Dashboard(ctx context.Context, id string) (*patients.Dashboard, error) {
	patient, now, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.dashboard(*patient, now)
}

func (s *service) Timeline(ctx context.Context, id string) ([]timeline.Entry, error) {
	patient, now, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return patients.RefreshTimeAgo(patient.Entries, now), nil
}

func (s *service) Periods(ctx context.Context, id string) (*patients.PeriodsView, error) {
	patient, now, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Periods(*patient, now), nil
}

// current returns the patient as of now without storing it. Entries that went
// stale since the last update are left out.
func (s *service) current(ctx context.Context, id string) (*patients.Patient, time.Time, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.clock()
	view, _ := patients.Reduce(*patient, patients.Batch{}, s.environment(patient.Id, now))
	return &view, now, nil
}

func (s *service) apply(ctx context.Context, id string, batch patients.Batch, malformed int) (*patients.Dashboard, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		patient, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		now := s.clock()
		start := time.Now()
		next, result := patients.Reduce(*patient, batch, s.environment(patient.Id, now))
		metrics.MergeDuration.Observe(time.Since(start).Seconds())

		if malformed > 0 {
			if result.Discarded == nil {
				result.Discarded = map[timeline.DiscardReason]int{}
			}
			result.Discarded[timeline.DiscardMalformed] += malformed
		}

		dashboard, err := s.evaluator.Dashboard(next, now)
		if err != nil {
			return nil, err
		}
		next.LastStatus = dashboard.Status

		stored := &next
		if changed(*patient, next) {
			stored, err = s.repo.Replace(ctx, next)
			if errors.Is(err, patients.ErrConflict) {
				s.logger.Debugw("retrying patient update", "patientId", id, "attempt", attempt)
				continue
			} else if err != nil {
				return nil, err
			}
			s.notify(*stored)
			if stored.LastStatus != patient.LastStatus {
				s.statusChanged(ctx, *stored, patient.LastStatus, dashboard)
			}
		}

		for reason, count := range result.Discarded {
			metrics.RecordsDiscarded.WithLabelValues(string(reason)).Add(float64(count))
		}
		s.logger.Infow("merged patient events",
			"patientId", id,
			"entries", len(batch.Entries),
			"measurements", len(batch.Measurements),
			"kept", len(stored.Entries),
			"discarded", result.DiscardedCount(),
			"status", dashboard.Status,
		)

		metrics.StatusEvaluations.WithLabelValues(dashboard.Status.String()).Inc()
		dashboard.Discarded = result.Discarded
		return dashboard, nil
	}

	return nil, fmt.Errorf("unable to update patient %s after %d attempts: %w", id, maxUpdateAttempts, patients.ErrConflict)
}

func (s *service) dashboard(patient patients.Patient, now time.Time) (*patients.Dashboard, error) {
	dashboard, err := s.evaluator.Dashboard(patient, now)
	if err != nil {
		return nil, err
	}
	metrics.StatusEvaluations.WithLabelValues(dashboard.Status.String()).Inc()
	return dashboard, nil
}

// statusChanged records the transition for caregiver alerting. The patient is
// already stored so failures are only logged.
func (s *service) statusChanged(ctx context.Context, patient patients.Patient, previous status.Status, dashboard *patients.Dashboard) {
	if s.outbox == nil {
		return
	}

	var reasons []string
	for _, verdict := range dashboard.Verdicts {
		if verdict.Status != status.Normal {
			reasons = append(reasons, string(verdict.Indicator))
		}
	}
	event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, outbox.PatientStatusChangedPayload{
		PatientId:      patient.Id,
		PatientName:    patient.Name,
		CaregiverId:    patient.CaregiverId,
		BedNumber:      patient.BedNumber,
		PreviousStatus: previous.String(),
		Status:         dashboard.Status.String(),
		Reasons:        reasons,
		EvaluatedTime:  dashboard.EvaluatedTime,
	}, dashboard.EvaluatedTime)
	if err == nil {
		err = s.outbox.Create(ctx, event)
	}
	if err != nil {
		s.logger.Errorw("unable to record patient status change", "patientId", patient.Id, "status", dashboard.Status, "error", err)
	}
}

func (s *service) environment(patientId string, now time.Time) patients.Environment {
	options := s.config.MergerOptions()
	local := now.In(s.location)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	if s.config.StalenessFilter {
		options.SessionStart = startOfDay
	}

	env := patients.Environment{
		Merger: timeline.NewMerger(options),
		Now:    now,
	}
	if s.config.SeedDemoData {
		env.Seed = timeline.DemoSeed(patientId, startOfDay)
	}
	return env
}

func (s *service) notify(patient patients.Patient) {
	for _, listener := range s.listeners {
		listener.PatientUpdated(patient)
	}
}

// changed compares what is stored. Display fields and the location of
// timestamps are ignored, and timestamps are compared at the millisecond
// precision of the store.
func changed(previous, next patients.Patient) bool {
	if previous.LastStatus != next.LastStatus {
		return true
	}
	if len(previous.Entries) != len(next.Entries) || len(previous.Measurements) != len(next.Measurements) {
		return true
	}
	if !reflect.DeepEqual(storedEntries(previous.Entries), storedEntries(next.Entries)) {
		return true
	}
	return !reflect.DeepEqual(storedMeasurements(previous.Measurements), storedMeasurements(next.Measurements))
}

func storedEntries(entries []timeline.Entry) []timeline.Entry {
	stored := make([]timeline.Entry, len(entries))
	for i, entry := range entries {
		entry.TimeAgo = ""
		entry.Timestamp = storedTime(entry.Timestamp)
		stored[i] = entry
	}
	return stored
}

func storedMeasurements(measurements []normalize.Measurements) []normalize.Measurements {
	stored := make([]normalize.Measurements, len(measurements))
	for i, m := range measurements {
		m.EntryId = ""
		m.Timestamp = storedTime(m.Timestamp)
		stored[i] = m
	}
	return stored
}

func storedTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	stored := t.UTC().Truncate(time.Millisecond)
	return &stored
}
