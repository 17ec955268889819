// Package access runs the gate dialogue: identify the player, check their
// secret, bind a team reservation and redeem the presented ticket.
package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/clock"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

// ErrMalformedLine is wrapped by transport errors for a line that was
// received but cannot be used, such as invalid UTF-8 or an oversized line.
// The session treats it as a line matching no keyword.
var ErrMalformedLine = errors.New("malformed line")

// Conn is the line transport a session runs over. ReadLine returns io.EOF
// when the peer closes the connection.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
}

// Redeemer validates and commits a presented ticket code.
type Redeemer interface {
	Redeem(ctx context.Context, playerID int64, code string) (ticket.Result, error)
}

// Observer is notified when a session ends.
type Observer interface {
	SessionFinished(o Outcome)
}

// Protocol drives sessions. One Protocol serves every connection; all
// per-connection state lives in Session.
type Protocol struct {
	cfg      Config
	store    repository.Store
	redeemer Redeemer
	clock    clock.Clock
	logger   *zap.Logger
	observer Observer
}

// New constructs a Protocol. observer may be nil.
func New(cfg Config, store repository.Store, redeemer Redeemer, clk clock.Clock, logger *zap.Logger, observer Observer) (*Protocol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		cfg:      cfg,
		store:    store,
		redeemer: redeemer,
		clock:    clk,
		logger:   logger,
		observer: observer,
	}, nil
}

// Serve runs one session to its terminal outcome. It never panics; faults
// are reported to the peer as an internal error.
func (p *Protocol) Serve(ctx context.Context, conn Conn, remoteAddr string) (out Outcome) {
	sess := newSession(uuid.NewString(), remoteAddr, p.clock.Now())
	log := p.logger.With(
		zap.String("session_id", sess.ID),
		zap.String("remote_addr", remoteAddr),
	)

	var reservationID int64
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			f := internal(fmt.Errorf("panic: %v", r))
			func() {
				defer func() { _ = recover() }()
				p.respond(conn, f, log)
			}()
			out = p.finish(sess, f, 0, log)
		}
	}()

	f := p.run(ctx, sess, conn, &reservationID)
	p.respond(conn, f, log)
	return p.finish(sess, f, reservationID, log)
}

func (p *Protocol) run(ctx context.Context, sess *Session, conn Conn, reservationID *int64) *Failure {
	if f := p.identify(ctx, sess, conn); f != nil {
		return f
	}

	sess.Stage = StageSecret
	if f := p.proveSecret(sess, conn); f != nil {
		return f
	}

	if p.cfg.TeamBinding {
		sess.Stage = StageTeam
		if err := conn.WriteLine(PromptTeam); err != nil {
			return p.transportFailure(err)
		}
		if f := p.bindTeam(ctx, sess, conn); f != nil {
			return f
		}
	}

	sess.Stage = StageTicket
	if err := conn.WriteLine(PromptTicket); err != nil {
		return p.transportFailure(err)
	}
	return p.redeem(ctx, sess, conn, reservationID)
}

func (p *Protocol) identify(ctx context.Context, sess *Session, conn Conn) *Failure {
	line, f := p.readLine(conn)
	if f != nil {
		return f
	}

	raw, ok := field(line, KeyPlayerID)
	if !ok {
		return fail(KindProtocol, ReasonBadIDFormat)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fail(KindProtocol, ReasonIDNotInteger)
	}

	player, err := p.store.GetPlayer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(KindAuthentication, ReasonUnknownPlayer)
		}
		return internal(fmt.Errorf("get player %d: %w", id, err))
	}
	if !player.Active {
		return fail(KindAuthentication, ReasonInactivePlayer)
	}
	sess.Player = player

	// Without a team step the booking is checked before any secret is
	// asked for.
	if !p.cfg.TeamBinding {
		ok, err := p.store.ActiveReservationExists(ctx, player.ID)
		if err != nil {
			return internal(fmt.Errorf("check reservations: %w", err))
		}
		if !ok {
			return fail(KindAuthorization, ReasonNoMatchReservation)
		}
	}

	prompt := PromptBirthDate
	if p.cfg.Secret == SecretPassword {
		prompt = PromptPassword
	}
	if err := conn.WriteLine(prompt); err != nil {
		return p.transportFailure(err)
	}
	return nil
}

func (p *Protocol) proveSecret(sess *Session, conn Conn) *Failure {
	key, retry, exhausted := KeyBirthDate, ReasonWrongBirthDate, ReasonWrongBirthDate
	if p.cfg.Secret == SecretPassword {
		key, retry, exhausted = KeyPassword, ReasonWrongPassword, ReasonAccountLocked
	}

	return p.withRetries(sess, conn, retry, fail(KindAuthentication, exhausted), func(line string) (bool, *Failure) {
		value, ok := field(line, key)
		if !ok {
			return false, nil
		}
		if p.cfg.Secret == SecretPassword {
			return passwordMatches(sess.Player.Password, value), nil
		}
		return birthDateMatches(sess.Player.BirthDate, value), nil
	})
}

func (p *Protocol) bindTeam(ctx context.Context, sess *Session, conn Conn) *Failure {
	return p.withRetries(sess, conn, ReasonNoTeamReservation, fail(KindAuthorization, ReasonNoTeamReservation), func(line string) (bool, *Failure) {
		team, ok := field(line, KeyTeam)
		if !ok || team == "" {
			return false, nil
		}
		exists, err := p.store.TeamReservationExists(ctx, sess.PlayerID(), team)
		if err != nil {
			return false, internal(fmt.Errorf("check team reservation: %w", err))
		}
		return exists, nil
	})
}

func (p *Protocol) redeem(ctx context.Context, sess *Session, conn Conn, reservationID *int64) *Failure {
	line, f := p.readLine(conn)
	if f != nil {
		return f
	}
	code, ok := field(line, KeyTicket)
	if !ok || code == "" {
		return fail(KindProtocol, ReasonBadTicketLine)
	}

	res, err := p.redeemer.Redeem(ctx, sess.PlayerID(), code)
	if err != nil {
		return internal(err)
	}
	if !res.Granted() {
		return fail(KindAuthorization, res.Reason)
	}
	*reservationID = res.ReservationID
	return nil
}

// withRetries reads up to MaxAttempts lines for the current stage. check
// reports whether a line satisfies the step; a non-nil Failure from check
// ends the session at once. Non-final misses get a retry notice.
func (p *Protocol) withRetries(sess *Session, conn Conn, retryReason string, exhausted *Failure, check func(line string) (bool, *Failure)) *Failure {
	budget := p.cfg.MaxAttempts
	for sess.Attempts[sess.Stage] < budget {
		line, f := p.readLine(conn)
		if f != nil {
			return f
		}
		sess.Attempts[sess.Stage]++

		ok, f := check(line)
		if f != nil {
			return f
		}
		if ok {
			return nil
		}

		used := sess.Attempts[sess.Stage]
		if used < budget {
			notice := fmt.Sprintf("%s, tentative %d/%d", retryReason, used, budget)
			if err := conn.WriteLine(notice); err != nil {
				return p.transportFailure(err)
			}
		}
	}
	return exhausted
}

// readLine returns the next line. A malformed line comes back empty so
// each step refuses it, or counts it as an attempt, like any line without
// its keyword.
func (p *Protocol) readLine(conn Conn) (string, *Failure) {
	line, err := conn.ReadLine()
	if err != nil {
		if errors.Is(err, ErrMalformedLine) {
			p.logger.Debug("malformed line", zap.Error(err))
			return "", nil
		}
		return "", p.transportFailure(err)
	}
	return line, nil
}

func (p *Protocol) transportFailure(err error) *Failure {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &Failure{Kind: KindTransport, Reason: reasonIdle, Silent: true, Err: err}
	}
	if errors.Is(err, io.EOF) {
		return &Failure{Kind: KindTransport, Reason: ReasonDisconnected}
	}
	return &Failure{Kind: KindTransport, Reason: ReasonDisconnected, Err: err}
}

// respond writes the terminal line. Errors are ignored: the peer may
// already be gone.
func (p *Protocol) respond(conn Conn, f *Failure, log *zap.Logger) {
	line := MsgGranted
	if f != nil {
		if f.Silent {
			return
		}
		line = Refusal(f.Reason)
	}
	if err := conn.WriteLine(line); err != nil {
		log.Debug("terminal response not delivered", zap.Error(err))
	}
}

func (p *Protocol) finish(sess *Session, f *Failure, reservationID int64, log *zap.Logger) Outcome {
	out := Outcome{
		SessionID:     sess.ID,
		PlayerID:      sess.PlayerID(),
		Stage:         sess.Stage,
		Granted:       f == nil,
		ReservationID: reservationID,
		Failure:       f,
		Duration:      p.clock.Now().Sub(sess.StartedAt),
	}
	if f == nil {
		out.Stage = StageDone
	}

	fields := []zap.Field{
		zap.Int64("player_id", out.PlayerID),
		zap.String("stage", out.Stage.String()),
		zap.Duration("duration", out.Duration),
	}
	switch {
	case f == nil:
		log.Info("access granted", append(fields, zap.Int64("reservation_id", reservationID))...)
	case f.Kind == KindInternal:
		log.Error("session failed", append(fields, zap.Error(f))...)
	default:
		log.Info("access refused", append(fields,
			zap.String("kind", f.Kind.String()),
			zap.String("reason", f.Reason),
		)...)
	}

	if p.observer != nil {
		p.observer.SessionFinished(out)
	}
	return out
}

// field returns the trimmed value of "KEY:value", or false when line does
// not start with KEY:.
func field(line, key string) (string, bool) {
	value, ok := strings.CutPrefix(line, key+":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func passwordMatches(stored, given string) bool {
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func birthDateMatches(stored time.Time, given string) bool {
	if stored.IsZero() {
		return false
	}
	d, err := time.Parse(model.BirthDateLayout, given)
	if err != nil {
		return false
	}
	return d.Format(model.BirthDateLayout) == stored.Format(model.BirthDateLayout)
}
