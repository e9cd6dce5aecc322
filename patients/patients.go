package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/store"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

var (
	ErrNotFound            = fmt.Errorf("patient %w", errors.NotFound)
	ErrDuplicate           = fmt.Errorf("patient %w", errors.Duplicate)
	ErrConflict            = fmt.Errorf("patient %w", errors.Conflict)
	ErrInvalidRegistration = fmt.Errorf("registration %w", errors.BadRequest)
)

// Registration is the record used once to create a patient.
type Registration struct {
	Id          string   `mapstructure:"id" json:"id,omitempty"`
	Name        string   `mapstructure:"name" json:"name"`
	Age         *int     `mapstructure:"age" json:"age,omitempty"`
	Weight      *float64 `mapstructure:"weight" json:"weight,omitempty"`
	IsCKD       bool     `mapstructure:"isCKD" json:"isCKD"`
	GfrStage    *int     `mapstructure:"gfrStage" json:"gfrStage,omitempty"`
	CaregiverId string   `mapstructure:"caregiverId" json:"caregiverId,omitempty"`
	BedNumber   string   `mapstructure:"bedNumber" json:"bedNumber,omitempty"`
}

// RegistrationFromRecord decodes a registration that may use legacy field names.
func RegistrationFromRecord(record normalize.Record) (Registration, error) {
	registration := Registration{}
	if err := normalize.Decode(normalize.Canonicalize(record), &registration); err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	registration.Name = strings.TrimSpace(registration.Name)
	if err := registration.Validate(); err != nil {
		return Registration{}, err
	}
	return registration, nil
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if r.Age != nil && (*r.Age < 0 || *r.Age > 150) {
		return fmt.Errorf("%w: age %d is out of range", ErrInvalidRegistration, *r.Age)
	}
	if r.Weight != nil && *r.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidRegistration)
	}
	if _, err := thresholds.GroupFromStage(r.IsCKD, r.GfrStage); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	return nil
}

type Patient struct {
	Id           string                   `bson:"_id" json:"id"`
	Name         string                   `bson:"name" json:"name"`
	Age          *int                     `bson:"age,omitempty" json:"age,omitempty"`
	Weight       *float64                 `bson:"weight,omitempty" json:"weight,omitempty"`
	IsCKD        bool                     `bson:"isCKD" json:"isCKD"`
	GfrStage     *int                     `bson:"gfrStage,omitempty" json:"gfrStage,omitempty"`
	Group        thresholds.Group         `bson:"group" json:"group"`
	Limits       thresholds.Limits        `bson:"limits" json:"limits"`
	CaregiverId  string                   `bson:"caregiverId,omitempty" json:"caregiverId,omitempty"`
	BedNumber    string                   `bson:"bedNumber,omitempty" json:"bedNumber,omitempty"`
	Entries      []timeline.Entry         `bson:"entries" json:"-"`
	Measurements []normalize.Measurements `bson:"measurements" json:"-"`
	LastStatus   status.Status            `bson:"lastStatus" json:"lastStatus"`
	Revision     int64                    `bson:"revision" json:"-"`
	CreatedTime  time.Time                `bson:"createdTime" json:"createdTime"`
	UpdatedTime  time.Time                `bson:"updatedTime" json:"updatedTime"`
}

// StageLabel renders the GFR stage the way caregivers read it, for example "GFR Ⅲ".
func (p Patient) StageLabel() string {
	if !p.IsCKD || p.GfrStage == nil {
		return ""
	}
	numerals := []string{"", "Ⅰ", "Ⅱ", "Ⅲ", "Ⅳ", "Ⅴ"}
	if *p.GfrStage < 1 || *p.GfrStage >= len(numerals) {
		return ""
	}
	return "GFR " + numerals[*p.GfrStage]
}

// Meta is the one line description shown next to the patient name.
func (p Patient) Meta() string {
	var parts []string
	if p.Age != nil {
		parts = append(parts, fmt.Sprintf("%d yrs", *p.Age))
	}
	if p.Weight != nil {
		parts = append(parts, fmt.Sprintf("%gkg", *p.Weight))
	}
	if label := p.StageLabel(); label != "" {
		parts = append(parts, label)
	}
	return strings.Join(parts, " | ")
}

type Filter struct {
	CaregiverId *string
}

//go:generate mockgen --build_flags=--mod=mod -source=./patients.go -destination=./test/mock_service.go -package test MockService

type Service interface {
	Register(ctx context.Context, registration Registration) (*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) ([]*Patient, error)
	Ingest(ctx context.Context, id string, records []normalize.Record) (*Dashboard, error)
	IngestDevice(ctx context.Context, payload normalize.Record) (*Dashboard, error)
	Dashboard(ctx context.Context, id string) (*Dashboard, error)
	Timeline(ctx context.Context, id string) ([]timeline.Entry, error)
	Periods(ctx context.Context, id string) (*PeriodsView, error)
}

// Listener is notified after a patient document was stored.
type Listener interface {
	PatientUpdated(patient Patient)
}
