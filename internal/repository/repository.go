// Package repository defines the identity store used by the gate and its
// PostgreSQL implementation. The memory and redis sub-packages provide the
// other backends.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRedeemed is returned by CommitRedemption when the ticket is no
// longer active, including when a concurrent commit won the race.
var ErrAlreadyRedeemed = errors.New("ticket already redeemed")

// Store is everything the access protocol needs from persistent state.
// CommitRedemption must be an atomic active -> inactive transition: of two
// concurrent commits for the same ticket exactly one returns nil.
type Store interface {
	GetPlayer(ctx context.Context, id int64) (*model.Player, error)
	TeamReservationExists(ctx context.Context, playerID int64, teamName string) (bool, error)
	ActiveReservationExists(ctx context.Context, playerID int64) (bool, error)
	LookupRedemption(ctx context.Context, ref model.TicketRef) (*model.RedemptionState, error)
	CommitRedemption(ctx context.Context, ref model.TicketRef, at time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// Seeder loads fixture data into a backend.
type Seeder interface {
	Seed(ctx context.Context, f *Fixtures) error
}

// Fixtures is a bundle of records used to populate a store, typically
// read from a YAML file.
type Fixtures struct {
	Players      []model.Player      `yaml:"players"`
	Matches      []model.Match       `yaml:"matches"`
	Reservations []model.Reservation `yaml:"reservations"`
	Tickets      []model.Ticket      `yaml:"tickets"`
}

// LoadFixtures reads a fixtures file. Callers run Validate once any
// missing ticket codes have been issued.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Validate checks referential integrity and fills in default ticket states.
func (f *Fixtures) Validate() error {
	players := make(map[int64]bool, len(f.Players))
	for _, p := range f.Players {
		if p.ID <= 0 {
			return fmt.Errorf("player id must be positive, got %d", p.ID)
		}
		players[p.ID] = true
	}
	matches := make(map[int64]bool, len(f.Matches))
	for _, m := range f.Matches {
		if m.StartsAt.IsZero() {
			return fmt.Errorf("match %d has no start time", m.ID)
		}
		matches[m.ID] = true
	}
	reservations := make(map[int64]bool, len(f.Reservations))
	for _, r := range f.Reservations {
		if !players[r.PlayerID] {
			return fmt.Errorf("reservation %d references unknown player %d", r.ID, r.PlayerID)
		}
		if !matches[r.MatchID] {
			return fmt.Errorf("reservation %d references unknown match %d", r.ID, r.MatchID)
		}
		reservations[r.ID] = true
	}
	codes := make(map[string]bool, len(f.Tickets))
	for i := range f.Tickets {
		t := &f.Tickets[i]
		if !reservations[t.ReservationID] {
			return fmt.Errorf("ticket references unknown reservation %d", t.ReservationID)
		}
		if t.Code == "" {
			return fmt.Errorf("ticket for reservation %d has no code", t.ReservationID)
		}
		if codes[t.Code] {
			return fmt.Errorf("duplicate ticket code %q", t.Code)
		}
		codes[t.Code] = true
		if t.State == "" {
			t.State = model.TicketActive
		}
	}
	return nil
}
