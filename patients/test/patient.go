package test

import (
	"time"

	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/test"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

func RandomRegistration() patients.Registration {
	age := test.Faker.IntBetween(40, 95)
	weight := float64(test.Faker.IntBetween(45, 90))
	registration := patients.Registration{
		Id:          test.Faker.UUID().V4(),
		Name:        test.Faker.Person().Name(),
		Age:         &age,
		Weight:      &weight,
		IsCKD:       test.Faker.Bool(),
		CaregiverId: test.Faker.UUID().V4(),
		BedNumber:   test.Faker.Numerify("##"),
	}
	if registration.IsCKD {
		stage := test.Faker.IntBetween(1, 5)
		registration.GfrStage = &stage
	}
	return registration
}

// RandomPatient returns a registered patient without events.
func RandomPatient() patients.Patient {
	registration := RandomRegistration()
	group, _ := thresholds.GroupFromStage(registration.IsCKD, registration.GfrStage)
	table, _ := thresholds.Default()
	limits, _ := table.Limits(group)
	created := test.Faker.Time().TimeBetween(time.Now().AddDate(0, -6, 0), time.Now()).UTC()
	return patients.Patient{
		Id:          registration.Id,
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
		CreatedTime: created,
		UpdatedTime: created,
	}
}

// PatientInGroup returns a random patient registered with the given stage.
func PatientInGroup(isCKD bool, stage int) patients.Patient {
	patient := RandomPatient()
	patient.IsCKD = isCKD
	patient.GfrStage = &stage
	patient.Group, _ = thresholds.GroupFromStage(isCKD, &stage)
	table, _ := thresholds.Default()
	patient.Limits, _ = table.Limits(patient.Group)
	return patient
}
