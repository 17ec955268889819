package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
)

// PlayerRepository handles persistence for players.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository constructs a PlayerRepository.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetPlayer returns a single player or ErrNotFound.
func (r *PlayerRepository) GetPlayer(ctx context.Context, id int64) (*model.Player, error) {
	var (
		p         model.Player
		birthDate *time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, display_name, password, birth_date, active
		 FROM players WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.DisplayName, &p.Password, &birthDate, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	if birthDate != nil {
		p.BirthDate = *birthDate
	}
	return &p, nil
}

// ReservationRepository answers reservation questions for a player.
type ReservationRepository struct {
	db *pgxpool.Pool
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// TeamReservationExists reports whether the player holds a confirmed (or
// status-less) reservation under teamName, compared case-insensitively, for
// a scheduled match.
func (r *ReservationRepository) TeamReservationExists(ctx context.Context, playerID int64, teamName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM reservations res
		   JOIN matches m ON m.id = res.match_id
		   WHERE res.player_id = $1
		     AND lower(res.team_name) = lower($2)
		     AND (res.status = 'confirmed' OR res.status IS NULL)
		     AND m.starts_at IS NOT NULL
		 )`,
		playerID, teamName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check team reservation: %w", err)
	}
	return exists, nil
}

// ActiveReservationExists reports whether the player holds any confirmed
// reservation whose ticket is still active.
func (r *ReservationRepository) ActiveReservationExists(ctx context.Context, playerID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM reservations res
		   JOIN tickets t ON t.reservation_id = res.id
		   WHERE res.player_id = $1
		     AND (res.status = 'confirmed' OR res.status IS NULL)
		     AND t.state = 'active'
		 )`,
		playerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active reservation: %w", err)
	}
	return exists, nil
}

// TicketRepository handles ticket lookup and redemption.
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

const redemptionSelect = `
	SELECT res.id, res.player_id, res.status, t.code, t.secret_hash, t.state,
	       t.redeemed_at, m.starts_at, m.ends_at
	FROM tickets t
	JOIN reservations res ON res.id = t.reservation_id
	JOIN matches m ON m.id = res.match_id`

// refClause returns the WHERE clause and argument selecting ref.
func refClause(ref model.TicketRef) (string, any, error) {
	switch {
	case ref.ReservationID > 0:
		return "t.reservation_id = $1", ref.ReservationID, nil
	case ref.Code != "":
		return "t.code = $1", ref.Code, nil
	default:
		return "", nil, fmt.Errorf("empty ticket reference")
	}
}

// LookupRedemption returns the redemption view of a ticket or ErrNotFound.
func (r *TicketRepository) LookupRedemption(ctx context.Context, ref model.TicketRef) (*model.RedemptionState, error) {
	where, arg, err := refClause(ref)
	if err != nil {
		return nil, err
	}

	var (
		st         model.RedemptionState
		status     *string
		secretHash *string
		endsAt     *time.Time
	)
	err = r.db.QueryRow(ctx, redemptionSelect+" WHERE "+where, arg).Scan(
		&st.ReservationID, &st.OwnerID, &status, &st.Code, &secretHash, &st.State,
		&st.RedeemedAt, &st.MatchStart, &endsAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup redemption: %w", err)
	}
	if status != nil {
		st.ReservationStatus = model.ReservationStatus(*status)
	}
	if secretHash != nil {
		st.SecretHash = *secretHash
	}
	if endsAt != nil {
		st.MatchEnd = *endsAt
	}
	return &st, nil
}

// CommitRedemption marks a ticket inactive inside a locked transaction.
//
// Two gates scanning the same ticket at the same moment would both read
// state = 'active' if the read and the write were separate statements.
// SELECT ... FOR UPDATE takes a row lock on the ticket, so the second
// transaction blocks until the first commits and then reads 'inactive'.
func (r *TicketRepository) CommitRedemption(ctx context.Context, ref model.TicketRef, at time.Time) error {
	where, arg, err := refClause(ref)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once the transaction has been committed.
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		reservationID int64
		state         model.TicketState
	)
	err = tx.QueryRow(ctx,
		`SELECT t.reservation_id, t.state FROM tickets t WHERE `+where+` FOR UPDATE`,
		arg,
	).Scan(&reservationID, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock ticket row: %w", err)
	}

	if state != model.TicketActive {
		return ErrAlreadyRedeemed
	}

	_, err = tx.Exec(ctx,
		`UPDATE tickets SET state = 'inactive', redeemed_at = $2 WHERE reservation_id = $1`,
		reservationID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark ticket inactive: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// PostgresStore is the Store backed by PostgreSQL.
type PostgresStore struct {
	*PlayerRepository
	*ReservationRepository
	*TicketRepository
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wires the per-table repositories over one pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		PlayerRepository:      NewPlayerRepository(db),
		ReservationRepository: NewReservationRepository(db),
		TicketRepository:      NewTicketRepository(db),
		db:                    db,
	}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Seed upserts fixtures in a single transaction.
func (s *PostgresStore) Seed(ctx context.Context, f *Fixtures) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range f.Players {
		var birthDate *time.Time
		if !p.BirthDate.IsZero() {
			birthDate = &p.BirthDate
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO players (id, display_name, password, birth_date, active)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
			   display_name = EXCLUDED.display_name,
			   password = EXCLUDED.password,
			   birth_date = EXCLUDED.birth_date,
			   active = EXCLUDED.active`,
			p.ID, p.DisplayName, p.Password, birthDate, p.Active,
		)
		if err != nil {
			return fmt.Errorf("upsert player %d: %w", p.ID, err)
		}
	}

	for _, m := range f.Matches {
		var endsAt *time.Time
		if !m.EndsAt.IsZero() {
			endsAt = &m.EndsAt
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO matches (id, starts_at, ends_at) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at`,
			m.ID, m.StartsAt, endsAt,
		)
		if err != nil {
			return fmt.Errorf("upsert match %d: %w", m.ID, err)
		}
	}

	for _, res := range f.Reservations {
		var status *string
		if res.Status != "" {
			v := string(res.Status)
			status = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO reservations (id, player_id, match_id, team_name, status)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
			   player_id = EXCLUDED.player_id,
			   match_id = EXCLUDED.match_id,
			   team_name = EXCLUDED.team_name,
			   status = EXCLUDED.status`,
			res.ID, res.PlayerID, res.MatchID, res.TeamName, status,
		)
		if err != nil {
			return fmt.Errorf("upsert reservation %d: %w", res.ID, err)
		}
	}

	for _, t := range f.Tickets {
		if t.State == "" {
			t.State = model.TicketActive
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO tickets (reservation_id, code, secret_hash, state)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (reservation_id) DO UPDATE SET
			   code = EXCLUDED.code,
			   secret_hash = EXCLUDED.secret_hash,
			   state = EXCLUDED.state,
			   redeemed_at = NULL`,
			t.ReservationID, t.Code, t.SecretHash, string(t.State),
		)
		if err != nil {
			return fmt.Errorf("upsert ticket %d: %w", t.ReservationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
