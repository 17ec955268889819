package access

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
)

// Stage is a step of the access protocol.
type Stage int

const (
	StageIdentity Stage = iota
	StageSecret
	StageTeam
	StageTicket
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdentity:
		return "identity"
	case StageSecret:
		return "secret"
	case StageTeam:
		return "team"
	case StageTicket:
		return "ticket"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Session is the per-connection protocol state. It is never shared.
type Session struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time
	Stage      Stage
	Player     *model.Player
	Attempts   map[Stage]int
}

func newSession(id, remote string, now time.Time) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remote,
		StartedAt:  now,
		Stage:      StageIdentity,
		Attempts:   make(map[Stage]int),
	}
}

// PlayerID returns the authenticated player id, or 0 before identification.
func (s *Session) PlayerID() int64 {
	if s.Player == nil {
		return 0
	}
	return s.Player.ID
}

// FailureKind classifies why a session was refused.
type FailureKind int

const (
	// KindProtocol is a malformed line or wrong keyword.
	KindProtocol FailureKind = iota
	// KindAuthentication is an unknown player or a wrong secret.
	KindAuthentication
	// KindAuthorization is a ticket or reservation refusal.
	KindAuthorization
	// KindTransport is a disconnect or idle timeout.
	KindTransport
	// KindInternal is a store fault or a recovered panic.
	KindInternal
)

func (k FailureKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindTransport:
		return "transport"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is a terminal refusal produced by a protocol step.
type Failure struct {
	Kind   FailureKind
	Reason string
	// Silent failures close the connection without a refusal line.
	Silent bool
	// Err carries the underlying cause for internal faults.
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind FailureKind, reason string) *Failure {
	return &Failure{Kind: kind, Reason: reason}
}

func internal(err error) *Failure {
	return &Failure{Kind: KindInternal, Reason: ReasonInternal, Err: err}
}

// Outcome summarises a finished session.
type Outcome struct {
	SessionID     string
	PlayerID      int64
	Stage         Stage
	Granted       bool
	ReservationID int64
	Failure       *Failure
	Duration      time.Duration
}

// Result is a short label for metrics: "granted" or the failure kind.
func (o Outcome) Result() string {
	if o.Granted {
		return "granted"
	}
	if o.Failure == nil {
		return "unknown"
	}
	return o.Failure.Kind.String()
}
