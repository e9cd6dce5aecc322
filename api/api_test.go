package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/api"
	"github.com/tidepool-org/hydration/cohort"
	cohortTest "github.com/tidepool-org/hydration/cohort/test"
	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/outbox"
	outboxTest "github.com/tidepool-org/hydration/outbox/test"
	"github.com/tidepool-org/hydration/patients"
	patientsTest "github.com/tidepool-org/hydration/patients/test"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/store"
	"github.com/tidepool-org/hydration/test"
	"github.com/tidepool-org/hydration/timeline"
)

var _ = Describe("Api", func() {
	var server *echo.Echo
	var healthCheck *api.HealthCheck
	var patientsService *patientsTest.MockService
	var cohortService *cohortTest.MockService
	var outboxRepo *outboxTest.MockRepository
	var ctrl *gomock.Controller

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		patientsService = patientsTest.NewMockService(ctrl)
		cohortService = cohortTest.NewMockService(ctrl)
		outboxRepo = outboxTest.NewMockRepository(ctrl)

		handler, err := api.NewHandler(api.Params{
			Config:   config.New(),
			Patients: patientsService,
			Cohort:   cohortService,
			Outbox:   outboxRepo,
			Logger:   zap.NewNop().Sugar(),
		})
		Expect(err).ToNot(HaveOccurred())

		healthCheck = api.NewHealthCheck()
		server, err = api.NewServer(handler, healthCheck, zap.NewNop())
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	serve := func(method, path string, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	Describe("Ready", func() {
		It("fails until the service is ready", func() {
			Expect(serve(http.MethodGet, "/ready", "").Code).To(Equal(http.StatusServiceUnavailable))

			healthCheck.SetReady(true)
			Expect(serve(http.MethodGet, "/ready", "").Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Metrics", func() {
		It("serves prometheus metrics", func() {
			rec := serve(http.MethodGet, "/metrics", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("hydration_"))
		})
	})

	Describe("Register patient", func() {
		It("accepts legacy field names", func() {
			patient := patientsTest.RandomPatient()
			patientsService.EXPECT().
				Register(gomock.Any(), test.Match(func(r patients.Registration) bool {
					return r.Name == "Ann Smith" && r.IsCKD && r.GfrStage != nil && *r.GfrStage == 3 && r.CaregiverId == "c1"
				})).
				Return(&patient, nil)

			rec := serve(http.MethodPost, "/v1/patients", `{"name":"Ann Smith","is_ckd":true,"gfr_stage":3,"caregiver_id":"c1"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["id"]).To(Equal(patient.Id))
			Expect(body).ToNot(HaveKey("entries"))
		})

		It("rejects a registration without a name", func() {
			rec := serve(http.MethodPost, "/v1/patients", `{"age":70}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an invalid stage", func() {
			rec := serve(http.MethodPost, "/v1/patients", `{"name":"Ann","isCKD":true,"gfrStage":9}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports duplicates as conflicts", func() {
			patientsService.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, patients.ErrDuplicate)

			rec := serve(http.MethodPost, "/v1/patients", `{"id":"p1","name":"Ann"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("Get patient", func() {
		It("returns the patient", func() {
			patient := patientsTest.RandomPatient()
			patientsService.EXPECT().Get(gomock.Any(), patient.Id).Return(&patient, nil)

			rec := serve(http.MethodGet, "/v1/patients/"+patient.Id, "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["name"]).To(Equal(patient.Name))
			Expect(body["group"]).To(Equal(string(patient.Group)))
		})

		It("returns not found for unknown patients", func() {
			patientsService.EXPECT().Get(gomock.Any(), "missing").Return(nil, patients.ErrNotFound)

			rec := serve(http.MethodGet, "/v1/patients/missing", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("List patients", func() {
		It("filters by caregiver and paginates", func() {
			caregiverId := "c1"
			patientsService.EXPECT().
				List(gomock.Any(), patients.Filter{CaregiverId: &caregiverId}, store.Pagination{Offset: 10, Limit: 5}).
				Return(nil, nil)

			rec := serve(http.MethodGet, "/v1/patients?caregiverId=c1&offset=10&limit=5", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("caps the page without a limit", func() {
			patientsService.EXPECT().
				List(gomock.Any(), patients.Filter{}, store.Pagination{Offset: 0, Limit: 100}).
				Return(nil, nil)

			rec := serve(http.MethodGet, "/v1/patients", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects a negative offset", func() {
			rec := serve(http.MethodGet, "/v1/patients?offset=-1", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Ingest events", func() {
		It("passes the raw records to the service", func() {
			dashboard := &patients.Dashboard{
				Status:    status.Risk,
				Discarded: map[timeline.DiscardReason]int{timeline.DiscardMalformed: 1},
			}
			patientsService.EXPECT().
				Ingest(gomock.Any(), "p1", test.Match(func(records []normalize.Record) bool {
					return len(records) == 2 && records[0]["in_ml"] == 200.0
				})).
				Return(dashboard, nil)

			rec := serve(http.MethodPost, "/v1/patients/p1/events", `[{"in_ml":200,"time":"08:00"},{"foo":"bar"}]`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(Equal("risk"))
			Expect(body["discarded"]).To(HaveKeyWithValue("malformed", 1.0))
		})

		It("rejects a body that is not a list", func() {
			rec := serve(http.MethodPost, "/v1/patients/p1/events", `{"in_ml":200}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Device updates", func() {
		It("ingests the update", func() {
			patientsService.EXPECT().
				IngestDevice(gomock.Any(), test.Match(func(payload normalize.Record) bool {
					return payload["patientId"] == "p1"
				})).
				Return(&patients.Dashboard{Status: status.Normal}, nil)

			rec := serve(http.MethodPost, "/v1/device-updates", `{"patientId":"p1","kind":"output","data":{"volume":300}}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Patient views", func() {
		It("returns the timeline", func() {
			patientsService.EXPECT().Timeline(gomock.Any(), "p1").Return([]timeline.Entry{{Id: "e1", Kind: timeline.KindIntake, ValueMl: 200}}, nil)

			rec := serve(http.MethodGet, "/v1/patients/p1/timeline", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"e1"`))
		})

		It("returns the dashboard", func() {
			patientsService.EXPECT().Dashboard(gomock.Any(), "p1").Return(&patients.Dashboard{Status: status.Emergency}, nil)

			rec := serve(http.MethodGet, "/v1/patients/p1/dashboard", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"emergency"`))
		})

		It("returns the periods", func() {
			patientsService.EXPECT().Periods(gomock.Any(), "p1").Return(&patients.PeriodsView{PatientId: "p1"}, nil)

			rec := serve(http.MethodGet, "/v1/patients/p1/periods", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Caregivers", func() {
		dashboard := func() *cohort.Dashboard {
			return &cohort.Dashboard{
				CaregiverId:   "c1",
				Stats:         cohort.Stats{Total: 1, Risk: 1, OverallStatus: status.Risk},
				Patients:      []cohort.PatientSummary{{Patient: patients.Profile{Id: "p1", Name: "Ann"}, Status: status.Risk}},
				EvaluatedTime: time.Date(2024, 5, 14, 14, 30, 0, 0, time.UTC),
			}
		}

		It("returns the cohort dashboard", func() {
			cohortService.EXPECT().Dashboard(gomock.Any(), "c1").Return(dashboard(), nil)

			rec := serve(http.MethodGet, "/v1/caregivers/c1/dashboard", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"overallStatus":"risk"`))
		})

		It("filters the patients by status", func() {
			risk := status.Risk
			cohortService.EXPECT().Patients(gomock.Any(), "c1", &risk).Return(dashboard().Patients, nil)

			rec := serve(http.MethodGet, "/v1/caregivers/c1/patients?status=risk", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects unknown statuses", func() {
			rec := serve(http.MethodGet, "/v1/caregivers/c1/patients?status=unknown", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("downloads the handover report", func() {
			cohortService.EXPECT().Dashboard(gomock.Any(), "c1").Return(dashboard(), nil)

			rec := serve(http.MethodGet, "/v1/caregivers/c1/report", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get(echo.HeaderContentDisposition)).To(ContainSubstring("hydration-c1-20240514-1430.xlsx"))

			file, err := xlsx.OpenBinary(bytes.Clone(rec.Body.Bytes()))
			Expect(err).ToNot(HaveOccurred())
			Expect(file.Sheet).To(HaveKey(cohort.ReportSheetNamePatients))
		})
	})

	Describe("Caregiver alerts", func() {
		It("lists status changes of the cohort", func() {
			since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
			event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, outbox.PatientStatusChangedPayload{
				PatientId:      "p1",
				PatientName:    "Ann",
				CaregiverId:    "c1",
				PreviousStatus: "normal",
				Status:         "emergency",
				Reasons:        []string{"dailyIntake"},
				EvaluatedTime:  since.Add(time.Hour),
			}, since.Add(time.Hour))
			Expect(err).ToNot(HaveOccurred())

			outboxRepo.EXPECT().
				List(gomock.Any(), test.Match(func(f outbox.Filter) bool {
					return f.CaregiverId != nil && *f.CaregiverId == "c1" &&
						f.EventType != nil && *f.EventType == outbox.EventTypePatientStatusChanged &&
						f.CreatedTimeStart != nil && f.CreatedTimeStart.Equal(since)
				}), store.Pagination{Offset: 0, Limit: 20}).
				Return([]outbox.Event{event}, nil)

			rec := serve(http.MethodGet, "/v1/caregivers/c1/alerts?since=2026-03-01T08:00:00Z&limit=20", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body []map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveLen(1))
			Expect(body[0]["patientId"]).To(Equal("p1"))
			Expect(body[0]["status"]).To(Equal("emergency"))
			Expect(body[0]["previousStatus"]).To(Equal("normal"))
		})

		It("returns an empty list without status changes", func() {
			outboxRepo.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

			rec := serve(http.MethodGet, "/v1/caregivers/c1/alerts", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("rejects a malformed since", func() {
			rec := serve(http.MethodGet, "/v1/caregivers/c1/alerts?since=yesterday", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
