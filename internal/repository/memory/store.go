// Package memory provides an in-process Store used for tests and for
// fixture-driven deployments without a database.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

// Store is a mutex-guarded Store. All state belongs to the instance.
type Store struct {
	mu           sync.RWMutex
	players      map[int64]model.Player
	matches      map[int64]model.Match
	reservations map[int64]model.Reservation
	tickets      map[int64]model.Ticket
	codes        map[string]int64
}

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Seeder = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		players:      make(map[int64]model.Player),
		matches:      make(map[int64]model.Match),
		reservations: make(map[int64]model.Reservation),
		tickets:      make(map[int64]model.Ticket),
		codes:        make(map[string]int64),
	}
}

// Seed copies fixtures into the store, replacing records with the same id.
func (s *Store) Seed(_ context.Context, f *repository.Fixtures) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range f.Players {
		s.players[p.ID] = p
	}
	for _, m := range f.Matches {
		s.matches[m.ID] = m
	}
	for _, r := range f.Reservations {
		s.reservations[r.ID] = r
	}
	for _, t := range f.Tickets {
		if old, ok := s.tickets[t.ReservationID]; ok {
			delete(s.codes, old.Code)
		}
		if t.State == "" {
			t.State = model.TicketActive
		}
		s.tickets[t.ReservationID] = t
		s.codes[t.Code] = t.ReservationID
	}
	return nil
}

func (s *Store) GetPlayer(_ context.Context, id int64) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) TeamReservationExists(_ context.Context, playerID int64, teamName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reservations {
		if r.PlayerID != playerID || !r.Status.Confirmed() {
			continue
		}
		if !strings.EqualFold(r.TeamName, teamName) {
			continue
		}
		if m, ok := s.matches[r.MatchID]; ok && !m.StartsAt.IsZero() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ActiveReservationExists(_ context.Context, playerID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reservations {
		if r.PlayerID != playerID || !r.Status.Confirmed() {
			continue
		}
		if t, ok := s.tickets[r.ID]; ok && t.State == model.TicketActive {
			return true, nil
		}
	}
	return false, nil
}

// resolve maps a reference to a reservation id. Callers hold the lock.
func (s *Store) resolve(ref model.TicketRef) (int64, bool) {
	if ref.ReservationID > 0 {
		_, ok := s.tickets[ref.ReservationID]
		return ref.ReservationID, ok
	}
	id, ok := s.codes[ref.Code]
	return id, ok
}

func (s *Store) LookupRedemption(_ context.Context, ref model.TicketRef) (*model.RedemptionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.resolve(ref)
	if !ok {
		return nil, repository.ErrNotFound
	}
	res, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := s.tickets[id]
	m := s.matches[res.MatchID]

	return &model.RedemptionState{
		ReservationID:     res.ID,
		OwnerID:           res.PlayerID,
		ReservationStatus: res.Status,
		Code:              t.Code,
		SecretHash:        t.SecretHash,
		State:             t.State,
		RedeemedAt:        t.RedeemedAt,
		MatchStart:        m.StartsAt,
		MatchEnd:          m.EndsAt,
	}, nil
}

func (s *Store) CommitRedemption(_ context.Context, ref model.TicketRef, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.resolve(ref)
	if !ok {
		return repository.ErrNotFound
	}
	t := s.tickets[id]
	if t.State != model.TicketActive {
		return repository.ErrAlreadyRedeemed
	}
	t.State = model.TicketInactive
	t.RedeemedAt = &at
	s.tickets[id] = t
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
