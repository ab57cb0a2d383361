package personalize

import "math"

// Options tune a ranking call.
type Options struct {
	// FreshnessWeight is the share of the final score given to recency of
	// the result's publish date.
	FreshnessWeight float64 `koanf:"freshness_weight" json:"freshness_weight" validate:"gte=0,lte=1"`

	// PersonalizationWeight is the share given to the history signal.
	PersonalizationWeight float64 `koanf:"personalization_weight" json:"personalization_weight" validate:"gte=0,lte=1"`

	// MaxHistoryDays bounds how far back events are read.
	MaxHistoryDays int `koanf:"max_history_days" json:"max_history_days" validate:"gte=0"`

	// DecayFactor is the per-day multiplier applied to an event's weight.
	DecayFactor float64 `koanf:"decay_factor" json:"decay_factor" validate:"gte=0,lte=1"`

	// UndatedFreshness is the freshness assigned to results with no date.
	UndatedFreshness float64 `koanf:"undated_freshness" json:"undated_freshness" validate:"gte=0,lte=1"`

	// DomainWeight adds domain affinity to the personal score. Zero
	// disables it.
	DomainWeight float64 `koanf:"domain_weight" json:"domain_weight" validate:"gte=0"`
}

// DefaultOptions returns the standard ranking options.
func DefaultOptions() Options {
	return Options{
		FreshnessWeight:       0.3,
		PersonalizationWeight: 0.7,
		MaxHistoryDays:        30,
		DecayFactor:           0.95,
		UndatedFreshness:      0,
	}
}

// Normalized clamps weights into [0,1] and, if freshness and
// personalization together exceed 1, scales both down so they sum to 1.
func (o Options) Normalized() Options {
	def := DefaultOptions()

	o.FreshnessWeight = clamp01(o.FreshnessWeight)
	o.PersonalizationWeight = clamp01(o.PersonalizationWeight)
	if sum := o.FreshnessWeight + o.PersonalizationWeight; sum > 1 {
		o.FreshnessWeight /= sum
		o.PersonalizationWeight /= sum
	}

	if o.MaxHistoryDays <= 0 {
		o.MaxHistoryDays = def.MaxHistoryDays
	}
	if o.DecayFactor <= 0 || o.DecayFactor > 1 || math.IsNaN(o.DecayFactor) {
		o.DecayFactor = def.DecayFactor
	}
	o.UndatedFreshness = clamp01(o.UndatedFreshness)
	if o.DomainWeight < 0 || math.IsNaN(o.DomainWeight) {
		o.DomainWeight = 0
	}
	return o
}

// BaseWeight is the share left for a result's own score.
func (o Options) BaseWeight() float64 {
	return math.Max(0, 1-o.FreshnessWeight-o.PersonalizationWeight)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
