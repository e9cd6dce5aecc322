package test

import (
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/onsi/ginkgo/v2"
)

// Faker is seeded from ginkgo so failing specs can be reproduced with --seed.
var Faker = faker.NewWithSeed(rand.NewSource(ginkgo.GinkgoRandomSeed()))

// RandomTimeOfDay returns an instant on the given day between the two clock
// offsets, truncated to the minute.
func RandomTimeOfDay(day time.Time, from, to time.Duration) time.Time {
	minutes := Faker.IntBetween(int(from/time.Minute), int(to/time.Minute))
	return day.Add(time.Duration(minutes) * time.Minute)
}
