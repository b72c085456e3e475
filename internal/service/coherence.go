package service

import "github.com/templui/ressona/internal/model"

// BaselineCoherence is the score of an empty set. Stored intentions can
// only raise it.
const BaselineCoherence = 50.0

// Coherence is 50 + 50 * manifested/total over the given intentions.
func Coherence(intentions []model.Intention) float64 {
	if len(intentions) == 0 {
		return BaselineCoherence
	}

	manifested := 0
	for _, in := range intentions {
		if in.IsManifested {
			manifested++
		}
	}
	return BaselineCoherence + 50*float64(manifested)/float64(len(intentions))
}

type CoherenceBand string

const (
	BandLow    CoherenceBand = "low"
	BandMedium CoherenceBand = "medium"
	BandHigh   CoherenceBand = "high"
)

// Band buckets a score the way the gauge colors it.
func Band(level float64) CoherenceBand {
	switch {
	case level < 50:
		return BandLow
	case level < 80:
		return BandMedium
	default:
		return BandHigh
	}
}
