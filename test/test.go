package test

import (
	"regexp"
	"runtime"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var testPackage = regexp.MustCompile(`^(?:.*/)?([^/.]+?)(?:_test)?\.`)

// Test runs the ginkgo specs of the calling package under its package name.
func Test(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, suiteName())
}

func suiteName() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "hydration"
	}
	if matches := testPackage.FindStringSubmatch(runtime.FuncForPC(pc).Name()); matches != nil {
		return matches[1]
	}
	return "hydration"
}
