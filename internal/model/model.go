// Package model defines the core domain types for the stadium gate.
package model

import (
	"time"

	"gopkg.in/yaml.v3"
)

// BirthDateLayout is the wire and comparison format for birth dates.
const BirthDateLayout = "2006-01-02"

// Player is a ticket holder who may present themselves at a gate.
type Player struct {
	ID          int64     `json:"id" yaml:"id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Password    string    `json:"-" yaml:"password"`
	BirthDate   time.Time `json:"birth_date" yaml:"birth_date"`
	Active      bool      `json:"active" yaml:"active"`
}

// UnmarshalYAML decodes a player record. A record without an active key
// is active, matching the players table default.
func (p *Player) UnmarshalYAML(value *yaml.Node) error {
	type plain Player
	raw := plain{Active: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Player(raw)
	return nil
}

// ReservationStatus is the booking state of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationPending   ReservationStatus = "pending"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Confirmed reports whether the reservation counts as confirmed.
// An unset status is treated as confirmed.
func (s ReservationStatus) Confirmed() bool {
	return s == ReservationConfirmed || s == ""
}

// Match is a scheduled fixture. EndsAt is zero when no end was recorded.
type Match struct {
	ID       int64     `json:"id" yaml:"id"`
	StartsAt time.Time `json:"starts_at" yaml:"starts_at"`
	EndsAt   time.Time `json:"ends_at,omitempty" yaml:"ends_at"`
}

// Reservation binds a player to a team and a match.
type Reservation struct {
	ID       int64             `json:"id" yaml:"id"`
	PlayerID int64             `json:"player_id" yaml:"player_id"`
	MatchID  int64             `json:"match_id" yaml:"match_id"`
	TeamName string            `json:"team_name" yaml:"team_name"`
	Status   ReservationStatus `json:"status" yaml:"status"`
}

// TicketState is the redemption state of a ticket.
type TicketState string

const (
	TicketActive   TicketState = "active"
	TicketInactive TicketState = "inactive"
)

// Ticket is the one-time admission token owned by a reservation.
type Ticket struct {
	ReservationID int64       `json:"reservation_id" yaml:"reservation_id"`
	Code          string      `json:"code" yaml:"code"`
	SecretHash    string      `json:"-" yaml:"secret_hash"`
	State         TicketState `json:"state" yaml:"state"`
	RedeemedAt    *time.Time  `json:"redeemed_at,omitempty" yaml:"-"`
}

// TicketRef identifies a ticket either by its reservation or by its
// verbatim code. ReservationID takes precedence when set.
type TicketRef struct {
	ReservationID int64
	Code          string
}

// RedemptionState is everything needed to decide whether a ticket may be
// redeemed right now.
type RedemptionState struct {
	ReservationID     int64             `json:"reservation_id"`
	OwnerID           int64             `json:"owner_id"`
	ReservationStatus ReservationStatus `json:"reservation_status"`
	Code              string            `json:"code"`
	SecretHash        string            `json:"-"`
	State             TicketState       `json:"state"`
	RedeemedAt        *time.Time        `json:"redeemed_at,omitempty"`
	MatchStart        time.Time         `json:"match_start"`
	MatchEnd          time.Time         `json:"match_end,omitempty"`
}

// Active reports whether the ticket can still be redeemed.
func (r *RedemptionState) Active() bool {
	return r.State == TicketActive
}
