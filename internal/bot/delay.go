package bot

import (
	"math"
	"math/rand"
)

// Delay bounds for a single inter-keystroke interval. Nothing a bot does
// is faster than 50ms or slower than 2s between keys.
const (
	minDelayMs = 50.0
	maxDelayMs = 2000.0
)

// Hesitation pauses model a typist reading ahead or losing the thread.
const (
	hesitationMeanMs   = 500.0
	hesitationStdDevMs = 250.0
)

// burstFactor compresses the interval when the bot is in a typing burst.
const burstFactor = 0.6

// sampleLogNormal draws from a log-normal distribution with the given
// arithmetic mean and standard deviation. The log-space parameters are
// derived so the produced distribution actually has those moments, which
// matches how human inter-keystroke intervals are skewed: most keys come
// quickly, a long tail comes slowly.
func sampleLogNormal(rng *rand.Rand, mean, stddev float64) float64 {
	if mean <= 0 {
		return 0
	}
	ratio := stddev / mean
	sigma2 := math.Log(1 + ratio*ratio)
	mu := math.Log(mean) - sigma2/2
	return math.Exp(mu + math.Sqrt(sigma2)*rng.NormFloat64())
}

// NextKeystrokeDelay samples the interval before the bot's next key press,
// in milliseconds. The base draw is log-normal around the tier's IKI; with
// the tier's hesitation probability an extra thinking pause is added, and
// with its burst probability the interval is compressed. The result is
// clamped to [50ms, 2000ms].
func (b *Bot) NextKeystrokeDelay() int64 {
	d := sampleLogNormal(b.rng, b.Tier.IKIMeanMs, b.Tier.IKIStdDevMs)
	if b.rng.Float64() < b.Tier.HesitationProbability {
		d += sampleLogNormal(b.rng, hesitationMeanMs, hesitationStdDevMs)
	}
	if b.rng.Float64() < b.Tier.BurstProbability {
		d *= burstFactor
	}
	if d < minDelayMs {
		d = minDelayMs
	}
	if d > maxDelayMs {
		d = maxDelayMs
	}
	return int64(d)
}
