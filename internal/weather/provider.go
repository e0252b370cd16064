package weather

import (
	"context"
	"time"
)

// Cycle fetches datasets for a single update cycle. Implementations may
// memoize fallback data for the lifetime of the cycle, so a Cycle must not
// be reused across cycles.
type Cycle interface {
	Fetch(ctx context.Context, kind DatasetKind) (Dataset, error)
}

// Provider abstracts the NEA data sources.
type Provider interface {
	NewCycle(queryTime time.Time) Cycle
}

// Store is the contract the snapshot store must satisfy.
type Store interface {
	SaveSnapshot(snapshot Snapshot)
	GetLatest() (Snapshot, error)
	GetRange(from, to time.Time) ([]Snapshot, error)
}

// Features selects which consumers are enabled.
type Features struct {
	Weather bool
	Sensors bool
	Areas   []string
	Region  bool
	Rain    bool
}

// RequiredDatasets returns the deduplicated dataset kinds the enabled
// features depend on, in assembly order.
func (f Features) RequiredDatasets() []DatasetKind {
	if f.Weather {
		return append([]DatasetKind(nil), AllKinds...)
	}

	need := make(map[DatasetKind]bool)
	if f.Sensors {
		if len(f.Areas) > 0 {
			need[KindForecast2hr] = true
		}
		if f.Region {
			need[KindForecast24hr] = true
		}
		if f.Rain {
			need[KindRain] = true
		}
	}

	var kinds []DatasetKind
	for _, k := range AllKinds {
		if need[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
