// Package ticket parses ticket codes, applies the admission window and
// redeems tickets exactly once.
package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
)

// ErrInvalidCode is returned when a code does not match RES-<id>-<hex>.
var ErrInvalidCode = errors.New("invalid ticket code")

// MinFragmentLen is the shortest hash fragment a structured code may carry.
const MinFragmentLen = 8

// issuedFragmentLen is how much of the secret hash Issue embeds in a code.
const issuedFragmentLen = 12

var codePattern = regexp.MustCompile(`^(?i:RES)-([0-9]+)-([0-9a-fA-F]+)$`)

// Code is a parsed structured ticket code.
type Code struct {
	ReservationID int64
	// Fragment is the lowercase hex prefix of the ticket's secret hash.
	Fragment string
}

// String renders the code in its canonical form.
func (c Code) String() string {
	return fmt.Sprintf("RES-%d-%s", c.ReservationID, c.Fragment)
}

// ParseCode parses "RES-<reservation-id>-<hex-fragment>".
func ParseCode(s string) (Code, error) {
	m := codePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Code{}, ErrInvalidCode
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return Code{}, ErrInvalidCode
	}
	if len(m[2]) < MinFragmentLen {
		return Code{}, ErrInvalidCode
	}
	return Code{ReservationID: id, Fragment: strings.ToLower(m[2])}, nil
}

// Issue creates a fresh active ticket for a reservation: a random secret
// hash and the structured code that proves knowledge of it.
func Issue(reservationID int64) (model.Ticket, error) {
	if reservationID <= 0 {
		return model.Ticket{}, fmt.Errorf("reservation id must be positive, got %d", reservationID)
	}
	seed, err := uuid.NewRandom()
	if err != nil {
		return model.Ticket{}, fmt.Errorf("generate ticket secret: %w", err)
	}
	sum := sha256.Sum256(seed[:])
	hash := hex.EncodeToString(sum[:])

	return model.Ticket{
		ReservationID: reservationID,
		Code:          Code{ReservationID: reservationID, Fragment: hash[:issuedFragmentLen]}.String(),
		SecretHash:    hash,
		State:         model.TicketActive,
	}, nil
}

// IssueMissing fills in code and hash for fixture tickets that have
// neither. Tickets with a code but no hash are left for direct lookup.
func IssueMissing(tickets []model.Ticket) error {
	for i := range tickets {
		t := &tickets[i]
		if t.Code != "" || t.SecretHash != "" {
			continue
		}
		issued, err := Issue(t.ReservationID)
		if err != nil {
			return err
		}
		t.Code = issued.Code
		t.SecretHash = issued.SecretHash
		if t.State == "" {
			t.State = issued.State
		}
	}
	return nil
}
