package bot

import (
	"fmt"
	"math/rand"

	"github.com/velotype/velotype/internal/tiers"
)

var nameAdjectives = []string{
	"Swift", "Quiet", "Rapid", "Steady", "Clever",
	"Blazing", "Patient", "Nimble", "Sly", "Bold",
}

var nameAnimals = []string{
	"Fox", "Otter", "Falcon", "Lynx", "Badger",
	"Heron", "Viper", "Marten", "Osprey", "Stoat",
}

// Name generates a display name for a bot, tagged with its tier so humans
// know roughly what they are racing.
func Name(tier tiers.Tier, rng *rand.Rand) string {
	adj := nameAdjectives[rng.Intn(len(nameAdjectives))]
	animal := nameAnimals[rng.Intn(len(nameAnimals))]
	return fmt.Sprintf("%s%s (%s)", adj, animal, tier.DisplayName)
}

// ExpectedCompletionTimeMs estimates how long a bot of this tier needs for
// a text, inflated for the extra keystrokes its mistakes will cost. A UX
// hint only; the simulation itself decides when the bot actually finishes.
func ExpectedCompletionTimeMs(tier tiers.Tier, textLen int) int64 {
	if textLen <= 0 {
		return 0
	}
	charsPerMs := tier.TargetWPMMean * 5 / 60000
	if charsPerMs <= 0 {
		return 0
	}
	base := float64(textLen) / charsPerMs
	overhead := 1 + tier.MistakeProbability*2
	return int64(base * overhead)
}
