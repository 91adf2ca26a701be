package signals

import (
	"math"

	"github.com/verso-app/verso/internal/types"
)

// Fusion decides how a new observation combines with the existing row
// for its dimension. existing is nil on the first observation.
//
// The returned confidence is a saturating accumulator, not a calibrated
// probability: it approximates "how many times has this been observed",
// never "how likely is this to be wrong". A calibrated-fusion policy can
// replace the default without touching callers.
type Fusion interface {
	Fuse(existing *types.Signal, obs types.SignalObservation) (value types.SignalValue, confidence float64)
}

// LastWriteWins is the default fusion policy: the incoming value always
// replaces the stored one, and confidence saturates toward Cap. A
// contradicting observation against a high-confidence dimension is
// silently overwritten; reconciliation is out of scope here.
type LastWriteWins struct {
	Base float64 // first-write floor before the increment (0.5)
	Cap  float64 // confidence ceiling (0.95)
}

// DefaultFusion returns the stock saturating last-write-wins policy.
func DefaultFusion() Fusion {
	return LastWriteWins{Base: 0.5, Cap: 0.95}
}

// Fuse implements Fusion.
func (f LastWriteWins) Fuse(existing *types.Signal, obs types.SignalObservation) (types.SignalValue, float64) {
	if existing == nil {
		return obs.Value, math.Min(f.Cap, f.Base+obs.Weight)
	}
	return obs.Value, math.Min(f.Cap, existing.Confidence+obs.Weight)
}
