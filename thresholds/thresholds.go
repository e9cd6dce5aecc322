package thresholds

import (
	"errors"
	"fmt"
	"math"
)

// Group is the kidney function category that selects a threshold profile.
type Group string

const (
	GroupNone         Group = "none"
	GroupMildModerate Group = "mild_moderate"
	GroupModerate     Group = "moderate"
	GroupSevere       Group = "severe"
)

var Groups = []Group{GroupNone, GroupMildModerate, GroupModerate, GroupSevere}

var ErrInvalidStage = errors.New("gfr stage must be between 1 and 5")

// GroupFromStage derives the severity group from the registration record.
// Patients without CKD or without a known stage use the general profile.
func GroupFromStage(isCKD bool, stage *int) (Group, error) {
	if !isCKD || stage == nil {
		return GroupNone, nil
	}

	switch s := *stage; {
	case s < 1 || s > 5:
		return "", fmt.Errorf("%w: got %d", ErrInvalidStage, s)
	case s <= 2:
		return GroupMildModerate, nil
	case s == 3:
		return GroupModerate, nil
	default:
		return GroupSevere, nil
	}
}

func (g Group) Valid() bool {
	for _, group := range Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Indicator is a named physiological measurement used for classification.
type Indicator string

const (
	IndicatorUrine24h             Indicator = "urine24h"
	IndicatorSingleUrine          Indicator = "singleUrine"
	IndicatorDailyIntake          Indicator = "dailyIntake"
	IndicatorNetIntake            Indicator = "netIntake"
	IndicatorInOutRatio           Indicator = "inOutRatio"
	IndicatorUrineSpecificGravity Indicator = "urineSpecificGravity"
	IndicatorUrineOsmolality      Indicator = "urineOsmolality"
	IndicatorWeightChange24h      Indicator = "weightChange24h"
	IndicatorNoDrinkNoUrineHours  Indicator = "noDrinkNoUrineHours"
)

var Indicators = []Indicator{
	IndicatorUrine24h,
	IndicatorSingleUrine,
	IndicatorDailyIntake,
	IndicatorNetIntake,
	IndicatorInOutRatio,
	IndicatorUrineSpecificGravity,
	IndicatorUrineOsmolality,
	IndicatorWeightChange24h,
	IndicatorNoDrinkNoUrineHours,
}

// Domain is the set of values the bands of an indicator are expected to cover.
func (i Indicator) Domain() Interval {
	switch i {
	case IndicatorNetIntake, IndicatorWeightChange24h:
		return Interval{Min: math.Inf(-1), Max: math.Inf(1)}
	default:
		return Interval{Min: 0, Max: math.Inf(1)}
	}
}

// Interval is the half-open range [Min, Max).
type Interval struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (i Interval) Contains(value float64) bool {
	return value >= i.Min && value < i.Max
}

func (i Interval) Valid() bool {
	return i.Min < i.Max
}

func (i Interval) String() string {
	return fmt.Sprintf("[%g, %g)", i.Min, i.Max)
}

// Range holds the three bands declared for one indicator in one group.
type Range struct {
	Normal    Interval `yaml:"normal" json:"normal"`
	Risk      Interval `yaml:"risk" json:"risk"`
	Emergency Interval `yaml:"emergency" json:"emergency"`
}

// Limits are the daily intake and output allowances of a group.
type Limits struct {
	IntakeMl float64 `yaml:"intakeMl" json:"intakeMl"`
	OutputMl float64 `yaml:"outputMl" json:"outputMl"`
}

type Profile struct {
	Limits     Limits              `yaml:"limits"`
	Indicators map[Indicator]Range `yaml:"indicators"`
}

// ConfigurationError reports a threshold table that cannot be used safely.
type ConfigurationError struct {
	Group     Group
	Indicator Indicator
	Reason    string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Group != "" && e.Indicator != "":
		return fmt.Sprintf("threshold configuration error for group %q indicator %q: %s", e.Group, e.Indicator, e.Reason)
	case e.Group != "":
		return fmt.Sprintf("threshold configuration error for group %q: %s", e.Group, e.Reason)
	default:
		return "threshold configuration error: " + e.Reason
	}
}

func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
