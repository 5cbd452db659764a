package market

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/rs/zerolog"
)

//go:embed fallback/markets.json
var fallbackMarkets []byte

// Fallback is the static bundled market dataset served when neither the
// cache nor the network has data. Entries use the provider's wire format and
// go through the same conversion as live data.
type Fallback struct {
	events map[string][]gateway.Event
}

// LoadFallback parses the embedded dataset
func LoadFallback() (*Fallback, error) {
	return ParseFallback(fallbackMarkets)
}

// ParseFallback parses a dataset keyed by sport
func ParseFallback(data []byte) (*Fallback, error) {
	var events map[string][]gateway.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse fallback markets: %w", err)
	}
	return &Fallback{events: events}, nil
}

// Snapshots returns the fallback snapshots for a sport, or nil
func (f *Fallback) Snapshots(sportKey string, logger zerolog.Logger) []models.OddsSnapshot {
	if f == nil {
		return nil
	}
	events, ok := f.events[sportKey]
	if !ok {
		return nil
	}
	return BuildSnapshots(events, logger)
}

// Sports lists the sports the dataset covers
func (f *Fallback) Sports() []string {
	if f == nil {
		return nil
	}
	sports := make([]string, 0, len(f.events))
	for k := range f.events {
		sports = append(sports, k)
	}
	sort.Strings(sports)
	return sports
}
