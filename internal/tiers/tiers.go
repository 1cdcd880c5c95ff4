// Package tiers defines the bot skill tier catalog.
//
// Tier parameters live in an embedded CUE file with range constraints, so
// an impossible tier (a 400 WPM "beginner", a negative mistake rate) is a
// load-time error rather than a silently weird bot. Go code sees tiers
// only through Load.
package tiers

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed tiers.cue
var tiersCUE string

// Tier names shipped in the embedded catalog.
const (
	Beginner     = "beginner"
	Intermediate = "intermediate"
	Pro          = "pro"
)

// Tier holds the typing characteristics of one bot skill level.
type Tier struct {
	Name                  string  `json:"name"`
	DisplayName           string  `json:"displayName"`
	TargetWPMMean         float64 `json:"targetWpmMean"`
	TargetWPMStdDev       float64 `json:"targetWpmStdDev"`
	MistakeProbability    float64 `json:"mistakeProbability"`
	CorrectionProbability float64 `json:"correctionProbability"`
	CorrectionDelayMs     float64 `json:"correctionDelayMs"`
	IKIMeanMs             float64 `json:"ikiMeanMs"`
	IKIStdDevMs           float64 `json:"ikiStdDevMs"`
	HesitationProbability float64 `json:"hesitationProbability"`
	BurstProbability      float64 `json:"burstProbability"`
}

// CompileError is a tier catalog defect with its CUE source position.
type CompileError struct {
	Tier    string
	Message string
}

func (e *CompileError) Error() string {
	if e.Tier != "" {
		return fmt.Sprintf("tier %q: %s", e.Tier, e.Message)
	}
	return e.Message
}

// Load compiles the embedded catalog and returns tiers keyed by name.
// Constraint violations in the CUE surface as CompileErrors.
func Load() (map[string]Tier, error) {
	return compile(tiersCUE)
}

// MustLoad is Load for callers wiring the embedded catalog at startup,
// where a malformed build is unrecoverable.
func MustLoad() map[string]Tier {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// Names returns the tier names in sorted order.
func Names(catalog map[string]Tier) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compile(src string) (map[string]Tier, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, &CompileError{Message: cueerrors.Details(err, nil)}
	}

	tiersVal := v.LookupPath(cue.ParsePath("tiers"))
	if !tiersVal.Exists() {
		return nil, &CompileError{Message: "tiers struct is missing"}
	}
	if err := tiersVal.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{Message: cueerrors.Details(err, nil)}
	}

	out := make(map[string]Tier)
	iter, err := tiersVal.Fields()
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		var t Tier
		if err := iter.Value().Decode(&t); err != nil {
			return nil, &CompileError{Tier: name, Message: err.Error()}
		}
		t.Name = name
		out[name] = t
	}
	if len(out) == 0 {
		return nil, &CompileError{Message: "catalog defines no tiers"}
	}
	return out, nil
}
