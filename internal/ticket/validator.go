package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/clock"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

// Policy selects how a presented code is interpreted.
type Policy string

const (
	// PolicyStructured expects RES-<reservation-id>-<hash-fragment>.
	PolicyStructured Policy = "structured"
	// PolicyDirect looks the code up verbatim. Kept for older terminals
	// whose tickets carry no secret hash.
	PolicyDirect Policy = "direct"
)

// ParsePolicy validates a policy name; empty means structured.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyStructured, "":
		return PolicyStructured, nil
	case PolicyDirect:
		return PolicyDirect, nil
	default:
		return "", fmt.Errorf("unknown ticket policy %q", s)
	}
}

// Refusal reasons sent to the gate terminal.
const (
	ReasonBadFormat     = "Code QR invalide (format attendu RES-...)"
	ReasonUnknown       = "QR inexistant ou non associé"
	ReasonNotOwner      = "QR n'appartient pas à ce joueur"
	ReasonHashMismatch  = "QR non valide (hash ne correspond pas)"
	ReasonAlreadyUsed   = "QR déjà utilisé"
	ReasonOutsideWindow = "QR expiré ou pas encore valable"

	ReasonDirectUnknown       = "QR invalide ou non associe"
	ReasonDirectAlreadyUsed   = "qr deja utilise"
	ReasonDirectOutsideWindow = "hors fenetre horaire"
)

// Result is the outcome of a redemption attempt. An empty Reason means the
// ticket was redeemed.
type Result struct {
	ReservationID int64
	Reason        string
}

// Granted reports whether the ticket was redeemed.
func (r Result) Granted() bool {
	return r.Reason == ""
}

func refuse(reason string) Result {
	return Result{Reason: reason}
}

// Validator checks presented codes and commits redemptions.
type Validator struct {
	store  repository.Store
	policy Policy
	window Window
	clock  clock.Clock
	logger *zap.Logger
}

// NewValidator constructs a Validator.
func NewValidator(store repository.Store, policy Policy, window Window, clk clock.Clock, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		store:  store,
		policy: policy,
		window: window,
		clock:  clk,
		logger: logger,
	}
}

// Policy returns the configured code policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Redeem validates code for playerID and, if every check passes, marks the
// ticket inactive. A non-nil error is an internal fault; refusals are
// reported through Result.
func (v *Validator) Redeem(ctx context.Context, playerID int64, code string) (Result, error) {
	if v.policy == PolicyDirect {
		return v.redeemDirect(ctx, playerID, code)
	}
	return v.redeemStructured(ctx, playerID, code)
}

func (v *Validator) redeemStructured(ctx context.Context, playerID int64, raw string) (Result, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return refuse(ReasonBadFormat), nil
	}
	ref := model.TicketRef{ReservationID: code.ReservationID}

	st, err := v.store.LookupRedemption(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return refuse(ReasonUnknown), nil
		}
		return Result{}, fmt.Errorf("lookup reservation %d: %w", code.ReservationID, err)
	}

	switch {
	case !st.ReservationStatus.Confirmed():
		return refuse(ReasonUnknown), nil
	case st.OwnerID != playerID:
		return refuse(ReasonNotOwner), nil
	case st.SecretHash == "" || !strings.HasPrefix(strings.ToLower(st.SecretHash), code.Fragment):
		return refuse(ReasonHashMismatch), nil
	case !st.Active():
		return refuse(ReasonAlreadyUsed), nil
	}

	now := v.clock.Now()
	if !v.window.Admits(now, st.MatchStart, st.MatchEnd) {
		return refuse(ReasonOutsideWindow), nil
	}

	return v.commit(ctx, ref, st, ReasonAlreadyUsed)
}

func (v *Validator) redeemDirect(ctx context.Context, playerID int64, raw string) (Result, error) {
	ref := model.TicketRef{Code: strings.TrimSpace(raw)}

	st, err := v.store.LookupRedemption(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return refuse(ReasonDirectUnknown), nil
		}
		return Result{}, fmt.Errorf("lookup ticket code: %w", err)
	}

	switch {
	case st.OwnerID != playerID, !st.ReservationStatus.Confirmed():
		return refuse(ReasonDirectUnknown), nil
	case !st.Active():
		return refuse(ReasonDirectAlreadyUsed), nil
	}

	if !v.window.Admits(v.clock.Now(), st.MatchStart, st.MatchEnd) {
		return refuse(ReasonDirectOutsideWindow), nil
	}

	return v.commit(ctx, model.TicketRef{ReservationID: st.ReservationID}, st, ReasonDirectAlreadyUsed)
}

// commit performs the active -> inactive transition. Losing a race to a
// concurrent commit is reported as already used.
func (v *Validator) commit(ctx context.Context, ref model.TicketRef, st *model.RedemptionState, usedReason string) (Result, error) {
	err := v.store.CommitRedemption(ctx, ref, v.clock.Now())
	switch {
	case err == nil:
		v.logger.Info("ticket redeemed",
			zap.Int64("reservation_id", st.ReservationID),
			zap.Int64("player_id", st.OwnerID),
		)
		return Result{ReservationID: st.ReservationID}, nil
	case errors.Is(err, repository.ErrAlreadyRedeemed):
		v.logger.Warn("redemption lost to concurrent commit",
			zap.Int64("reservation_id", st.ReservationID),
		)
		return refuse(usedReason), nil
	case errors.Is(err, repository.ErrNotFound):
		return Result{}, fmt.Errorf("ticket %d vanished before commit: %w", st.ReservationID, err)
	default:
		return Result{}, fmt.Errorf("commit redemption %d: %w", st.ReservationID, err)
	}
}
