package venues

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"atlas/internal/services/ingest"
	"atlas/pkg/errors"
)

// Venue identifiers
const (
	VenueHyperliquid = "hyperliquid"
	VenueApex        = "apex_omni"
)

// ErrUnknownVenue is returned by the registry for an unrecognized venue name
var ErrUnknownVenue = errors.New("unknown venue")

// Adapter turns one venue's raw API documents into the normalized cycle
// payload. state is the venue's account snapshot document, fills the raw
// execution history slice. Venue-dependent fields (margin_rate, is_reducing)
// are filled in when the venue reports them and left absent otherwise;
// downstream fallback paths handle absence.
type Adapter interface {
	Venue() string
	ParseCycle(accountID uuid.UUID, observedAt time.Time, state, fills json.RawMessage) (ingest.Cycle, error)
}

// Registry maps venue names to adapters
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry over the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Venue()] = a
	}
	return r
}

// Get returns the adapter for a venue name
func (r *Registry) Get(venue string) (Adapter, error) {
	a, ok := r.adapters[venue]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownVenue, "%q", venue)
	}
	return a, nil
}
