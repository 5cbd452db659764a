package market

import (
	"errors"
	"fmt"

	"github.com/cypherlabdev/bet-simulator-service/internal/gateway"
	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	errNoH2HMarket    = errors.New("no h2h market")
	errMissingOutcome = errors.New("missing home or away outcome")
	errNoValidBooks   = errors.New("no bookmaker passed the sanity check")
)

// BuildSnapshots converts provider events to cache snapshots. Bookmakers and
// events that fail the market sanity check are dropped and logged. An event
// id seen twice keeps the later entry at the earlier position.
func BuildSnapshots(events []gateway.Event, logger zerolog.Logger) []models.OddsSnapshot {
	snapshots := make([]models.OddsSnapshot, 0, len(events))
	seen := make(map[string]int, len(events))

	for _, e := range events {
		snap, err := buildSnapshot(e, logger)
		if err != nil {
			logger.Warn().Err(err).
				Str("event_id", e.ID).
				Str("match", e.HomeTeam+" vs "+e.AwayTeam).
				Msg("dropping event")
			continue
		}
		if i, ok := seen[snap.EventID]; ok {
			logger.Debug().
				Str("event_id", snap.EventID).
				Msg("duplicate event in feed")
			snapshots[i] = snap
			continue
		}
		seen[snap.EventID] = len(snapshots)
		snapshots = append(snapshots, snap)
	}

	return snapshots
}

func buildSnapshot(e gateway.Event, logger zerolog.Logger) (models.OddsSnapshot, error) {
	books := make([]models.BookmakerOdds, 0, len(e.Bookmakers))
	for _, b := range e.Bookmakers {
		odds, err := bookmakerOdds(e, b)
		if err != nil {
			logger.Debug().Err(err).
				Str("event_id", e.ID).
				Str("bookmaker", b.Key).
				Msg("dropping bookmaker")
			continue
		}
		books = append(books, odds)
	}

	if len(books) == 0 {
		return models.OddsSnapshot{}, errNoValidBooks
	}

	snap := models.OddsSnapshot{
		EventID:      e.ID,
		SportKey:     e.SportKey,
		SportTitle:   e.SportTitle,
		HomeTeam:     e.HomeTeam,
		AwayTeam:     e.AwayTeam,
		CommenceTime: e.CommenceTime,
		Bookmakers:   books,
	}
	snap.HomeOdds, snap.AwayOdds, snap.DrawOdds = consensus(books)

	if err := models.ValidateMarketPrices(snap.Prices()...); err != nil {
		return models.OddsSnapshot{}, fmt.Errorf("consensus prices: %w", err)
	}

	return snap, nil
}

// bookmakerOdds maps a bookmaker's h2h outcomes by name onto home/away/draw
func bookmakerOdds(e gateway.Event, b gateway.Bookmaker) (models.BookmakerOdds, error) {
	h2h, ok := b.Market(gateway.MarketH2H)
	if !ok {
		return models.BookmakerOdds{}, errNoH2HMarket
	}

	odds := models.BookmakerOdds{
		Key:        b.Key,
		Title:      b.Title,
		LastUpdate: b.LastUpdate,
	}

	var haveHome, haveAway bool
	for _, o := range h2h.Outcomes {
		switch o.Name {
		case e.HomeTeam:
			odds.Home, haveHome = o.Price, true
		case e.AwayTeam:
			odds.Away, haveAway = o.Price, true
		case gateway.OutcomeDraw:
			price := o.Price
			odds.Draw = &price
		}
	}
	if !haveHome || !haveAway {
		return models.BookmakerOdds{}, errMissingOutcome
	}

	if err := models.ValidateMarketPrices(odds.Prices()...); err != nil {
		return models.BookmakerOdds{}, err
	}
	return odds, nil
}

// consensus averages prices over the books, rounded to 2 dp. The draw is
// averaged over the books that price it.
func consensus(books []models.BookmakerOdds) (home, away decimal.Decimal, draw *decimal.Decimal) {
	var drawSum decimal.Decimal
	var drawCount int64

	for _, b := range books {
		home = home.Add(b.Home)
		away = away.Add(b.Away)
		if b.Draw != nil {
			drawSum = drawSum.Add(*b.Draw)
			drawCount++
		}
	}

	n := decimal.NewFromInt(int64(len(books)))
	home = home.Div(n).Round(2)
	away = away.Div(n).Round(2)
	if drawCount > 0 {
		d := drawSum.Div(decimal.NewFromInt(drawCount)).Round(2)
		draw = &d
	}
	return home, away, draw
}
