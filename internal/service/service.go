// Package service implements the operator-facing queries served by the
// admin HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

// ErrInvalidID is returned for non-positive reservation ids.
var ErrInvalidID = errors.New("reservation id must be a positive integer")

// AdminService answers health and ticket status questions.
type AdminService struct {
	store repository.Store
}

// NewAdminService constructs an AdminService.
func NewAdminService(store repository.Store) *AdminService {
	return &AdminService{store: store}
}

// Health checks the identity store.
func (s *AdminService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// TicketStatus returns the redemption state of a reservation's ticket.
func (s *AdminService) TicketStatus(ctx context.Context, reservationID int64) (*model.RedemptionState, error) {
	if reservationID <= 0 {
		return nil, ErrInvalidID
	}
	st, err := s.store.LookupRedemption(ctx, model.TicketRef{ReservationID: reservationID})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ticket status: %w", err)
	}
	return st, nil
}
