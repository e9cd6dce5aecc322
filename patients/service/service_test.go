package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/outbox"
	outboxTest "github.com/tidepool-org/hydration/outbox/test"
	"github.com/tidepool-org/hydration/patients"
	patientsService "github.com/tidepool-org/hydration/patients/service"
	patientsTest "github.com/tidepool-org/hydration/patients/test"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/test"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
	timelineTest "github.com/tidepool-org/hydration/timeline/test"
)

func Ptr[T any](value T) *T {
	return &value
}

func replaced(_ context.Context, patient patients.Patient) (*patients.Patient, error) {
	patient.Revision++
	return &patient, nil
}

var _ = Describe("Patients Service", func() {
	var service patients.Service
	var repo *patientsTest.MockRepository
	var listener *patientsTest.MockListener
	var ctrl *gomock.Controller
	var cfg *config.Config
	var now time.Time

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		repo = patientsTest.NewMockRepository(ctrl)
		listener = patientsTest.NewMockListener(ctrl)
		now = time.Date(2024, 5, 14, 14, 30, 0, 0, time.UTC)

		cfg = config.New()
		Expect(cfg.LoadFromEnv()).To(Succeed())
		cfg.Timezone = "UTC"

		table, err := thresholds.Default()
		Expect(err).ToNot(HaveOccurred())

		service, err = patientsService.NewService(patientsService.Params{
			Config:     cfg,
			Repository: repo,
			Table:      table,
			Clock:      func() time.Time { return now },
			Logger:     zap.NewNop().Sugar(),
			Listeners:  []patients.Listener{listener},
		})
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	Describe("Register", func() {
		It("derives the group and limits from the stage", func() {
			registration := patientsTest.RandomRegistration()
			registration.IsCKD = true
			registration.GfrStage = Ptr(5)

			repo.EXPECT().
				Create(gomock.Any(), test.Match(func(p patients.Patient) bool {
					return p.Id == registration.Id &&
						p.Group == thresholds.GroupSevere &&
						p.Limits == thresholds.Limits{IntakeMl: 1500, OutputMl: 1000} &&
						len(p.Measurements) == 1 && *p.Measurements[0].Weight == *registration.Weight &&
						p.CreatedTime.Equal(now)
				})).
				DoAndReturn(func(_ context.Context, p patients.Patient) (*patients.Patient, error) {
					return &p, nil
				})
			listener.EXPECT().PatientUpdated(gomock.Any())

			patient, err := service.Register(context.Background(), registration)
			Expect(err).ToNot(HaveOccurred())
			Expect(patient.Group).To(Equal(thresholds.GroupSevere))
		})

		It("generates an id when none is given", func() {
			registration := patientsTest.RandomRegistration()
			registration.Id = ""

			repo.EXPECT().
				Create(gomock.Any(), test.Match(func(p patients.Patient) bool { return p.Id != "" })).
				DoAndReturn(func(_ context.Context, p patients.Patient) (*patients.Patient, error) {
					return &p, nil
				})
			listener.EXPECT().PatientUpdated(gomock.Any())

			_, err := service.Register(context.Background(), registration)
			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects invalid registrations", func() {
			registration := patientsTest.RandomRegistration()
			registration.IsCKD = true
			registration.GfrStage = Ptr(6)

			_, err := service.Register(context.Background(), registration)
			Expect(err).To(MatchError(patients.ErrInvalidRegistration))
		})

		It("returns duplicate errors of the repository", func() {
			repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, patients.ErrDuplicate)

			_, err := service.Register(context.Background(), patientsTest.RandomRegistration())
			Expect(err).To(MatchError(patients.ErrDuplicate))
		})
	})

	Describe("Ingest", func() {
		var patient patients.Patient
		var records []normalize.Record

		BeforeEach(func() {
			patient = patientsTest.PatientInGroup(false, 1)
			records = []normalize.Record{
				{"kind": "intake", "value_ml": 200, "time": "08:15"},
				{"source": "urinal", "value_ml": "210 ml", "time": "09:10"},
				{"kind": "intake"},
				{"kind": "intake", "value_ml": 2, "time": "10:00"},
			}
		})

		It("merges the records and stores the patient", func() {
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)
			repo.EXPECT().
				Replace(gomock.Any(), test.Match(func(p patients.Patient) bool {
					return len(p.Entries) == 2 && p.Revision == patient.Revision
				})).
				DoAndReturn(replaced)
			listener.EXPECT().PatientUpdated(gomock.Any())

			dashboard, err := service.Ingest(context.Background(), patient.Id, records)
			Expect(err).ToNot(HaveOccurred())
			Expect(dashboard.Rollup.TotalIntake).To(Equal(200.0))
			Expect(dashboard.Rollup.TotalOutput).To(Equal(210.0))
			Expect(dashboard.Discarded).To(Equal(map[timeline.DiscardReason]int{
				timeline.DiscardMalformed:    1,
				timeline.DiscardBelowMinimum: 1,
			}))
			Expect(dashboard.Timeline[0].TimeAgo).To(Equal("5h 20m ago"))
		})

		It("retries when the patient was modified concurrently", func() {
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil).Times(2)
			repo.EXPECT().Replace(gomock.Any(), gomock.Any()).Return(nil, patients.ErrConflict)
			repo.EXPECT().Replace(gomock.Any(), gomock.Any()).DoAndReturn(replaced)
			listener.EXPECT().PatientUpdated(gomock.Any())

			_, err := service.Ingest(context.Background(), patient.Id, records)
			Expect(err).ToNot(HaveOccurred())
		})

		It("does not store a batch that was already merged", func() {
			var stored *patients.Patient
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)
			repo.EXPECT().
				Replace(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, p patients.Patient) (*patients.Patient, error) {
					stored, _ = replaced(ctx, p)
					return stored, nil
				})
			listener.EXPECT().PatientUpdated(gomock.Any())

			first, err := service.Ingest(context.Background(), patient.Id, records)
			Expect(err).ToNot(HaveOccurred())

			repo.EXPECT().Get(gomock.Any(), patient.Id).DoAndReturn(func(context.Context, string) (*patients.Patient, error) {
				return stored, nil
			})
			second, err := service.Ingest(context.Background(), patient.Id, records)
			Expect(err).ToNot(HaveOccurred())
			Expect(second.Timeline).To(Equal(first.Timeline))
		})

		It("does not store the same batch again as the clock moves", func() {
			var stored *patients.Patient
			repo.EXPECT().Get(gomock.Any(), patient.Id).DoAndReturn(func(context.Context, string) (*patients.Patient, error) {
				if stored != nil {
					return stored, nil
				}
				return &patient, nil
			}).Times(3)
			repo.EXPECT().
				Replace(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, p patients.Patient) (*patients.Patient, error) {
					p.Revision++
					raw, err := bson.Marshal(p)
					Expect(err).ToNot(HaveOccurred())
					stored = &patients.Patient{}
					Expect(bson.Unmarshal(raw, stored)).To(Succeed())
					return stored, nil
				}).
				Times(1)
			listener.EXPECT().PatientUpdated(gomock.Any()).Times(1)

			for i := 0; i < 3; i++ {
				_, err := service.Ingest(context.Background(), patient.Id, records)
				Expect(err).ToNot(HaveOccurred())
				now = now.Add(2 * time.Minute)
			}
		})

		It("ignores measurements of discarded records", func() {
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)

			dashboard, err := service.Ingest(context.Background(), patient.Id, []normalize.Record{
				{"source": "parse_error", "kind": "output", "value_ml": 100, "urine_specific_gravity": "1.040", "time": "12:00"},
				{"source": "urinal", "value_ml": 15000, "urine_osmolality": "950", "time": "13:00"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(dashboard.Status).To(Equal(status.Normal))
			Expect(dashboard.Readings).ToNot(HaveKey(thresholds.IndicatorUrineSpecificGravity))
			Expect(dashboard.Readings).ToNot(HaveKey(thresholds.IndicatorUrineOsmolality))
			Expect(dashboard.Discarded).To(Equal(map[timeline.DiscardReason]int{
				timeline.DiscardParseError:   1,
				timeline.DiscardAboveMaximum: 1,
			}))
		})

		It("returns not found for unknown patients", func() {
			repo.EXPECT().Get(gomock.Any(), "missing").Return(nil, patients.ErrNotFound)

			_, err := service.Ingest(context.Background(), "missing", records)
			Expect(err).To(MatchError(patients.ErrNotFound))
		})
	})

	Describe("IngestDevice", func() {
		It("stores the entry and the measurements of a device update", func() {
			patient := patientsTest.PatientInGroup(true, 3)
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)
			repo.EXPECT().
				Replace(gomock.Any(), test.Match(func(p patients.Patient) bool {
					return len(p.Entries) == 1 && p.Entries[0].Kind == timeline.KindOutput &&
						len(p.Measurements) == 1 && *p.Measurements[0].UrineSpecificGravity == 1.012
				})).
				DoAndReturn(replaced)
			listener.EXPECT().PatientUpdated(gomock.Any())

			dashboard, err := service.IngestDevice(context.Background(), normalize.Record{
				"patientId": patient.Id,
				"kind":      "urinal",
				"data": map[string]interface{}{
					"value_ml":             220,
					"urineSpecificGravity": 1.012,
				},
				"time": "2024-05-14T10:00:00Z",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(dashboard.Readings).To(HaveKeyWithValue(thresholds.IndicatorUrineSpecificGravity, 1.012))
		})

		It("requires a patient id", func() {
			_, err := service.IngestDevice(context.Background(), normalize.Record{"kind": "urinal", "data": map[string]interface{}{"value_ml": 220}})
			Expect(err).To(MatchError(patientsService.ErrMissingPatientId))
		})
	})

	Describe("Dashboard", func() {
		It("leaves out entries of previous days without storing", func() {
			patient := patientsTest.PatientInGroup(false, 1)
			patient.Entries = []timeline.Entry{
				timelineTest.Entry("today", timeline.KindOutput, timeline.SourceUrinal, 30, now.Add(-time.Hour)),
				timelineTest.Entry("yesterday", timeline.KindIntake, timeline.SourceManual, 2000, now.Add(-20*time.Hour)),
			}
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)

			dashboard, err := service.Dashboard(context.Background(), patient.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(dashboard.Timeline).To(HaveLen(1))
			Expect(dashboard.Rollup.TotalIntake).To(Equal(0.0))
			Expect(dashboard.Status).To(Equal(status.Emergency))
		})

		It("keeps entries of previous days when the staleness filter is off", func() {
			cfg.StalenessFilter = false
			patient := patientsTest.PatientInGroup(false, 1)
			patient.Entries = []timeline.Entry{
				timelineTest.Entry("yesterday", timeline.KindIntake, timeline.SourceManual, 2000, now.Add(-20*time.Hour)),
			}
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)

			entries, err := service.Timeline(context.Background(), patient.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].TimeAgo).To(Equal("20h ago"))
		})

		It("shows the demo day when seeding is enabled", func() {
			cfg.SeedDemoData = true
			patient := patientsTest.PatientInGroup(false, 1)
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)

			view, err := service.Periods(context.Background(), patient.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(*view.Buckets[0].CumulativeIntakeMl).To(Equal(350.0))
			Expect(*view.Buckets[1].CumulativeIntakeMl).To(Equal(650.0))
		})
	})

	Describe("Status changes", func() {
		var events *outboxTest.MockRepository
		var patient patients.Patient

		BeforeEach(func() {
			events = outboxTest.NewMockRepository(ctrl)
			table, err := thresholds.Default()
			Expect(err).ToNot(HaveOccurred())

			service, err = patientsService.NewService(patientsService.Params{
				Config:     cfg,
				Repository: repo,
				Table:      table,
				Clock:      func() time.Time { return now },
				Logger:     zap.NewNop().Sugar(),
				Outbox:     events,
				Listeners:  []patients.Listener{listener},
			})
			Expect(err).ToNot(HaveOccurred())

			patient = patientsTest.PatientInGroup(false, 1)
			patient.LastStatus = status.Normal
		})

		It("records a transition in the outbox", func() {
			var event outbox.Event
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)
			repo.EXPECT().
				Replace(gomock.Any(), test.Match(func(p patients.Patient) bool {
					return p.LastStatus == status.Emergency
				})).
				DoAndReturn(replaced)
			listener.EXPECT().PatientUpdated(gomock.Any())
			events.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e outbox.Event) error {
				event = e
				return nil
			})

			dashboard, err := service.Ingest(context.Background(), patient.Id, []normalize.Record{
				{"kind": "intake", "value_ml": 200, "time": "08:15"},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(dashboard.Status).To(Equal(status.Emergency))

			Expect(event.EventType).To(Equal(outbox.EventTypePatientStatusChanged))
			var payload outbox.PatientStatusChangedPayload
			Expect(bson.Unmarshal(event.Payload, &payload)).To(Succeed())
			Expect(payload.PatientId).To(Equal(patient.Id))
			Expect(payload.CaregiverId).To(Equal(patient.CaregiverId))
			Expect(payload.PreviousStatus).To(Equal("normal"))
			Expect(payload.Status).To(Equal("emergency"))
			Expect(payload.Reasons).To(ContainElement(string(thresholds.IndicatorDailyIntake)))
		})

		It("does not record an unchanged status", func() {
			patient.LastStatus = status.Emergency
			repo.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)
			repo.EXPECT().Replace(gomock.Any(), gomock.Any()).DoAndReturn(replaced)
			listener.EXPECT().PatientUpdated(gomock.Any())

			_, err := service.Ingest(context.Background(), patient.Id, []normalize.Record{
				{"kind": "intake", "value_ml": 200, "time": "08:15"},
			})
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
