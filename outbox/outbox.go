package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/hydration/store"
)

const CollectionName = "outbox"

// EventType identifies the kind of event
type EventType string

const (
	EventTypePatientStatusChanged EventType = "patientStatusChanged"
)

// Event is the common envelope for all outbox events
type Event struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty"`
	EventType   EventType           `bson:"eventType"`
	CreatedTime time.Time           `bson:"createdTime"`
	Payload     bson.Raw            `bson:"payload"`
}

// PatientStatusChangedPayload is written when merged events move a patient to
// another status. Caregiver alerting reads these events.
type PatientStatusChangedPayload struct {
	PatientId      string    `bson:"patientId" json:"patientId"`
	PatientName    string    `bson:"patientName" json:"patientName"`
	CaregiverId    string    `bson:"caregiverId,omitempty" json:"caregiverId,omitempty"`
	BedNumber      string    `bson:"bedNumber,omitempty" json:"bedNumber,omitempty"`
	PreviousStatus string    `bson:"previousStatus" json:"previousStatus"`
	Status         string    `bson:"status" json:"status"`
	Reasons        []string  `bson:"reasons,omitempty" json:"reasons,omitempty"`
	EvaluatedTime  time.Time `bson:"evaluatedTime" json:"evaluatedTime"`
}

type Filter struct {
	EventType        *EventType
	CaregiverId      *string
	CreatedTimeStart *time.Time
}

//go:generate go tool mockgen -source=./outbox.go -destination=./test/mock_outbox.go -package test

type Repository interface {
	Create(ctx context.Context, event Event) error
	// List returns matching events, newest first.
	List(ctx context.Context, filter Filter, pagination store.Pagination) ([]Event, error)
	Initialize(ctx context.Context) error
}

// NewEvent creates an Event from a typed payload
func NewEvent(eventType EventType, payload interface{}, createdTime time.Time) (Event, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("error marshaling outbox event payload: %w", err)
	}

	return Event{
		EventType:   eventType,
		CreatedTime: createdTime,
		Payload:     bson.Raw(raw),
	}, nil
}

// StatusChange decodes the payload of a patientStatusChanged event.
func (e Event) StatusChange() (*PatientStatusChangedPayload, error) {
	if e.EventType != EventTypePatientStatusChanged {
		return nil, fmt.Errorf("unexpected outbox event type %q", e.EventType)
	}
	payload := &PatientStatusChangedPayload{}
	if err := bson.Unmarshal(e.Payload, payload); err != nil {
		return nil, fmt.Errorf("error unmarshaling outbox event payload: %w", err)
	}
	return payload, nil
}
