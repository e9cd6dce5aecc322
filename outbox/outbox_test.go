package outbox_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/outbox"
	"github.com/tidepool-org/hydration/store"
	dbTest "github.com/tidepool-org/hydration/store/test"
)

var _ = Describe("NewEvent", func() {
	It("wraps the payload", func() {
		createdTime := time.Date(2024, 5, 14, 14, 30, 0, 0, time.UTC)
		event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, outbox.PatientStatusChangedPayload{
			PatientId: "p1",
			Status:    "emergency",
		}, createdTime)
		Expect(err).ToNot(HaveOccurred())
		Expect(event.Id).To(BeNil())
		Expect(event.CreatedTime).To(Equal(createdTime))

		var payload outbox.PatientStatusChangedPayload
		Expect(bson.Unmarshal(event.Payload, &payload)).To(Succeed())
		Expect(payload.PatientId).To(Equal("p1"))
		Expect(payload.Status).To(Equal("emergency"))
	})

	It("decodes status changes", func() {
		event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, outbox.PatientStatusChangedPayload{
			PatientId: "p1",
			Reasons:   []string{"urine24h"},
		}, time.Now())
		Expect(err).ToNot(HaveOccurred())

		payload, err := event.StatusChange()
		Expect(err).ToNot(HaveOccurred())
		Expect(payload.PatientId).To(Equal("p1"))
		Expect(payload.Reasons).To(ConsistOf("urine24h"))
	})

	It("refuses other event types", func() {
		_, err := outbox.Event{EventType: "other"}.StatusChange()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Outbox Repository", Ordered, func() {
	var repo outbox.Repository
	var database *mongo.Database
	var collection *mongo.Collection

	BeforeAll(func() {
		dbTest.SetupDatabase()
		database = dbTest.GetTestDatabase()
	})

	AfterAll(func() {
		dbTest.TeardownDatabase()
	})

	BeforeEach(func() {
		collection = database.Collection(outbox.CollectionName)
		lifecycle := fxtest.NewLifecycle(GinkgoT())

		var err error
		repo, err = outbox.NewRepository(database, zap.NewNop().Sugar(), lifecycle)
		Expect(err).ToNot(HaveOccurred())
		Expect(repo).ToNot(BeNil())
		lifecycle.RequireStart()
	})

	AfterEach(func() {
		_ = collection.Drop(context.Background())
	})

	Describe("Create", func() {
		It("inserts an event and fields persist correctly", func() {
			evaluatedTime := time.Date(2024, 5, 14, 14, 30, 0, 0, time.UTC)
			payload := outbox.PatientStatusChangedPayload{
				PatientId:      "p1",
				PatientName:    "John Doe",
				CaregiverId:    "c1",
				BedNumber:      "12A",
				PreviousStatus: "risk",
				Status:         "emergency",
				Reasons:        []string{"netIntake"},
				EvaluatedTime:  evaluatedTime,
			}

			event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, payload, evaluatedTime)
			Expect(err).ToNot(HaveOccurred())

			err = repo.Create(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())

			var result outbox.Event
			err = collection.FindOne(context.Background(), bson.M{
				"eventType":           string(outbox.EventTypePatientStatusChanged),
				"payload.caregiverId": "c1",
			}).Decode(&result)
			Expect(err).ToNot(HaveOccurred())

			Expect(result.Id).ToNot(BeNil())
			Expect(result.EventType).To(Equal(outbox.EventTypePatientStatusChanged))
			Expect(result.CreatedTime.Equal(evaluatedTime)).To(BeTrue())

			var decodedPayload outbox.PatientStatusChangedPayload
			Expect(bson.Unmarshal(result.Payload, &decodedPayload)).To(Succeed())
			Expect(decodedPayload.PatientId).To(Equal("p1"))
			Expect(decodedPayload.PreviousStatus).To(Equal("risk"))
			Expect(decodedPayload.Status).To(Equal("emergency"))
			Expect(decodedPayload.Reasons).To(ConsistOf("netIntake"))
		})
	})

	Describe("List", func() {
		create := func(patientId, caregiverId string, createdTime time.Time) {
			event, err := outbox.NewEvent(outbox.EventTypePatientStatusChanged, outbox.PatientStatusChangedPayload{
				PatientId:   patientId,
				CaregiverId: caregiverId,
				Status:      "risk",
			}, createdTime)
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.Create(context.Background(), event)).To(Succeed())
		}

		base := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)

		BeforeEach(func() {
			create("p1", "c1", base)
			create("p2", "c1", base.Add(time.Hour))
			create("p3", "c2", base.Add(2*time.Hour))
			create("p4", "c1", base.Add(3*time.Hour))
		})

		It("returns the caregiver's events newest first", func() {
			caregiverId := "c1"
			events, err := repo.List(context.Background(), outbox.Filter{CaregiverId: &caregiverId}, store.DefaultPagination())
			Expect(err).ToNot(HaveOccurred())

			var ids []string
			for _, event := range events {
				payload, err := event.StatusChange()
				Expect(err).ToNot(HaveOccurred())
				ids = append(ids, payload.PatientId)
			}
			Expect(ids).To(Equal([]string{"p4", "p2", "p1"}))
		})

		It("filters by created time and paginates", func() {
			caregiverId := "c1"
			start := base.Add(30 * time.Minute)
			events, err := repo.List(context.Background(), outbox.Filter{CaregiverId: &caregiverId, CreatedTimeStart: &start}, store.Pagination{Offset: 1, Limit: 5})
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))

			payload, err := events[0].StatusChange()
			Expect(err).ToNot(HaveOccurred())
			Expect(payload.PatientId).To(Equal("p2"))
		})
	})
})
