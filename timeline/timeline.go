package timeline

import (
	"time"

	"github.com/fatih/structs"
)

type Kind string

const (
	KindIntake Kind = "intake"
	KindOutput Kind = "output"
)

func (k Kind) Valid() bool {
	return k == KindIntake || k == KindOutput
}

type Source string

const (
	SourceWaterDispenser Source = "water_dispenser"
	SourceCamera         Source = "camera"
	SourceUrinal         Source = "urinal"
	SourceManual         Source = "manual"
	SourceDevice         Source = "device"
	SourceParseError     Source = "parse_error"
)

// Automated reports whether the source is a sensor channel that may report
// one physical event several times.
func (s Source) Automated() bool {
	switch s {
	case SourceWaterDispenser, SourceUrinal, SourceDevice:
		return true
	default:
		return false
	}
}

type AIRecognition struct {
	FoodType       string   `json:"foodType,omitempty" bson:"foodType,omitempty" structs:"foodType,omitempty"`
	EstimatedWater *float64 `json:"estimatedWater,omitempty" bson:"estimatedWater,omitempty" structs:"estimatedWater,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty" bson:"confidence,omitempty" structs:"confidence,omitempty"`
	HasRisk        bool     `json:"hasRisk,omitempty" bson:"hasRisk,omitempty" structs:"hasRisk,omitempty"`
	RiskFactors    []string `json:"riskFactors,omitempty" bson:"riskFactors,omitempty" structs:"riskFactors,omitempty"`
}

// Entry is one normalized intake or output event.
type Entry struct {
	Id        string     `json:"id" bson:"id" structs:"id"`
	PatientId string     `json:"patientId,omitempty" bson:"patientId,omitempty" structs:"patientId,omitempty"`
	Kind      Kind       `json:"kind" bson:"kind" structs:"kind"`
	Source    Source     `json:"source,omitempty" bson:"source,omitempty" structs:"source,omitempty"`
	ValueMl   float64    `json:"valueMl" bson:"valueMl" structs:"valueMl"`
	Timestamp *time.Time `json:"timestamp,omitempty" bson:"timestamp,omitempty" structs:"timestamp,omitempty,omitnested"`
	Time      string     `json:"time,omitempty" bson:"time,omitempty" structs:"time,omitempty"`
	TimeAgo   string     `json:"timeAgo,omitempty" bson:"-" structs:"timeAgo,omitempty"`
	Title     string     `json:"title,omitempty" bson:"title,omitempty" structs:"title,omitempty"`
	ValueText string     `json:"valueText,omitempty" bson:"valueText,omitempty" structs:"valueText,omitempty"`

	// Camera
	ImageUrl      string         `json:"imageUrl,omitempty" bson:"imageUrl,omitempty" structs:"imageUrl,omitempty"`
	AIRecognition *AIRecognition `json:"aiRecognition,omitempty" bson:"aiRecognition,omitempty" structs:"aiRecognition,omitempty"`

	// Urinal
	UrineColor           string   `json:"urineColor,omitempty" bson:"urineColor,omitempty" structs:"urineColor,omitempty"`
	UrineSpecificGravity *float64 `json:"urineSpecificGravity,omitempty" bson:"urineSpecificGravity,omitempty" structs:"urineSpecificGravity,omitempty"`
	UrineOsmolality      *float64 `json:"urineOsmolality,omitempty" bson:"urineOsmolality,omitempty" structs:"urineOsmolality,omitempty"`

	Note string `json:"note,omitempty" bson:"note,omitempty" structs:"note,omitempty"`
}

// Record exports the entry with canonical field names. Normalizing the record
// again yields the same entry.
func (e Entry) Record() map[string]interface{} {
	return structs.Map(e)
}

func (e Entry) HasTimestamp() bool {
	return e.Timestamp != nil && !e.Timestamp.IsZero()
}

// Rollup holds the daily sums derived from a timeline.
type Rollup struct {
	TotalIntake    float64 `json:"totalIntake" bson:"totalIntake"`
	TotalOutput    float64 `json:"totalOutput" bson:"totalOutput"`
	NetIntake      float64 `json:"netIntake" bson:"netIntake"`
	UrinationCount int     `json:"urinationCount" bson:"urinationCount"`
	IntakeCount    int     `json:"intakeCount" bson:"intakeCount"`
	OutputCount    int     `json:"outputCount" bson:"outputCount"`
}

func ComputeRollup(entries []Entry) Rollup {
	rollup := Rollup{}
	for _, entry := range entries {
		switch entry.Kind {
		case KindIntake:
			rollup.TotalIntake += entry.ValueMl
			rollup.IntakeCount++
		case KindOutput:
			rollup.TotalOutput += entry.ValueMl
			rollup.OutputCount++
		}
	}
	rollup.UrinationCount = rollup.OutputCount
	rollup.NetIntake = rollup.TotalIntake - rollup.TotalOutput
	return rollup
}
