// Package ratelimit implements the multi-tier request limiter that gates
// generation requests per actor and per owning group.
package ratelimit

// TierCeilings holds the request ceilings for one principal across the
// three window granularities. A zero ceiling disables that tier.
type TierCeilings struct {
	Minute int64 `yaml:"minute"`
	Hour   int64 `yaml:"hour"`
	Day    int64 `yaml:"day"`
}

// Ceilings holds the full set of request ceilings.
type Ceilings struct {
	Actor TierCeilings `yaml:"actor"`
	Group TierCeilings `yaml:"group"`
}

// DefaultCeilings returns the documented default ceilings: actors get
// 10/min, 100/hr, 500/day; groups get 50/min, 500/hr, 5000/day.
func DefaultCeilings() Ceilings {
	return Ceilings{
		Actor: TierCeilings{Minute: 10, Hour: 100, Day: 500},
		Group: TierCeilings{Minute: 50, Hour: 500, Day: 5000},
	}
}
