package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/velotype/velotype/internal/race"
)

// RunWithGolden executes a scenario, fails the test on any unmet step
// expectation, and compares the final snapshot's wire JSON against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, failure := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, failure)
	}

	wire, err := race.Marshal(result.Final)
	if err != nil {
		t.Fatalf("scenario %s: marshal final snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, wire)
}
