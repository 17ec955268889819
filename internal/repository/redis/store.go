// Package redis provides a Redis-backed Store. Each reservation is a hash
// carrying its ticket and match times, so a redemption touches one key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

const timeLayout = time.RFC3339Nano

// commitScript flips a reservation's ticket from active to inactive.
// Returns -1 when the reservation is missing, 0 when already inactive.
var commitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'inactive', 'redeemed_at', ARGV[1])
return 1
`)

// Store is a Redis-backed implementation of repository.Store.
type Store struct {
	client *redis.Client
	keys   keys
}

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Seeder = (*Store)(nil)
)

// New creates a Redis store and verifies the connection.
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis store with an existing client (for testing).
func NewWithClient(client *redis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultConfig().KeyPrefix
	}
	return &Store{client: client, keys: keys{prefix: prefix}}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) GetPlayer(ctx context.Context, id int64) (*model.Player, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.player(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}

	p := &model.Player{
		ID:          id,
		DisplayName: fields["display_name"],
		Password:    fields["password"],
		Active:      fields["active"] == "1",
	}
	if v := fields["birth_date"]; v != "" {
		p.BirthDate, err = time.Parse(model.BirthDateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("decode birth date of player %d: %w", id, err)
		}
	}
	return p, nil
}

func (s *Store) TeamReservationExists(ctx context.Context, playerID int64, teamName string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.keys.playerTeams(playerID), teamMember(teamName)).Result()
	if err != nil {
		return false, fmt.Errorf("check team reservation: %w", err)
	}
	return ok, nil
}

func (s *Store) ActiveReservationExists(ctx context.Context, playerID int64) (bool, error) {
	ids, err := s.client.SMembers(ctx, s.keys.playerReservations(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("list reservations: %w", err)
	}
	if len(ids) == 0 {
		return false, nil
	}

	pipe := s.client.Pipeline()
	states := make([]*redis.StringCmd, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		states = append(states, pipe.HGet(ctx, s.keys.reservation(id), "state"))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("read reservation states: %w", err)
	}
	for _, cmd := range states {
		if cmd.Val() == string(model.TicketActive) {
			return true, nil
		}
	}
	return false, nil
}

// reservationID resolves a ticket reference to a reservation id.
func (s *Store) reservationID(ctx context.Context, ref model.TicketRef) (int64, error) {
	if ref.ReservationID > 0 {
		return ref.ReservationID, nil
	}
	if ref.Code == "" {
		return 0, fmt.Errorf("empty ticket reference")
	}
	id, err := s.client.Get(ctx, s.keys.code(ref.Code)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("resolve ticket code: %w", err)
	}
	return id, nil
}

func (s *Store) LookupRedemption(ctx context.Context, ref model.TicketRef) (*model.RedemptionState, error) {
	id, err := s.reservationID(ctx, ref)
	if err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.keys.reservation(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("lookup redemption: %w", err)
	}
	if len(fields) == 0 || fields["code"] == "" {
		return nil, repository.ErrNotFound
	}
	return decodeRedemption(id, fields)
}

func decodeRedemption(id int64, fields map[string]string) (*model.RedemptionState, error) {
	owner, err := strconv.ParseInt(fields["player_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode owner of reservation %d: %w", id, err)
	}
	st := &model.RedemptionState{
		ReservationID:     id,
		OwnerID:           owner,
		ReservationStatus: model.ReservationStatus(fields["status"]),
		Code:              fields["code"],
		SecretHash:        fields["secret_hash"],
		State:             model.TicketState(fields["state"]),
	}
	if st.MatchStart, err = time.Parse(timeLayout, fields["starts_at"]); err != nil {
		return nil, fmt.Errorf("decode match start of reservation %d: %w", id, err)
	}
	if v := fields["ends_at"]; v != "" {
		if st.MatchEnd, err = time.Parse(timeLayout, v); err != nil {
			return nil, fmt.Errorf("decode match end of reservation %d: %w", id, err)
		}
	}
	if v := fields["redeemed_at"]; v != "" {
		at, err := time.Parse(timeLayout, v)
		if err != nil {
			return nil, fmt.Errorf("decode redemption time of reservation %d: %w", id, err)
		}
		st.RedeemedAt = &at
	}
	return st, nil
}

func (s *Store) CommitRedemption(ctx context.Context, ref model.TicketRef, at time.Time) error {
	id, err := s.reservationID(ctx, ref)
	if err != nil {
		return err
	}
	res, err := commitScript.Run(ctx, s.client,
		[]string{s.keys.reservation(id)},
		at.UTC().Format(timeLayout),
	).Int()
	if err != nil {
		return fmt.Errorf("commit redemption: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return repository.ErrAlreadyRedeemed
	default:
		return repository.ErrNotFound
	}
}

// Seed writes fixtures. Match times are copied onto each reservation.
func (s *Store) Seed(ctx context.Context, f *repository.Fixtures) error {
	matches := make(map[int64]model.Match, len(f.Matches))
	for _, m := range f.Matches {
		matches[m.ID] = m
	}
	tickets := make(map[int64]model.Ticket, len(f.Tickets))
	for _, t := range f.Tickets {
		tickets[t.ReservationID] = t
	}

	pipe := s.client.TxPipeline()
	for _, p := range f.Players {
		active := "0"
		if p.Active {
			active = "1"
		}
		birthDate := ""
		if !p.BirthDate.IsZero() {
			birthDate = p.BirthDate.Format(model.BirthDateLayout)
		}
		pipe.HSet(ctx, s.keys.player(p.ID), map[string]any{
			"display_name": p.DisplayName,
			"password":     p.Password,
			"birth_date":   birthDate,
			"active":       active,
		})
	}

	for _, r := range f.Reservations {
		m := matches[r.MatchID]
		fields := map[string]any{
			"player_id": r.PlayerID,
			"match_id":  r.MatchID,
			"team_name": r.TeamName,
			"status":    string(r.Status),
			"starts_at": m.StartsAt.UTC().Format(timeLayout),
			"ends_at":   "",
		}
		if !m.EndsAt.IsZero() {
			fields["ends_at"] = m.EndsAt.UTC().Format(timeLayout)
		}
		if t, ok := tickets[r.ID]; ok {
			state := t.State
			if state == "" {
				state = model.TicketActive
			}
			fields["code"] = t.Code
			fields["secret_hash"] = t.SecretHash
			fields["state"] = string(state)
			fields["redeemed_at"] = ""
			pipe.Set(ctx, s.keys.code(t.Code), r.ID, 0)
		}
		pipe.HSet(ctx, s.keys.reservation(r.ID), fields)

		if r.Status.Confirmed() && !m.StartsAt.IsZero() {
			pipe.SAdd(ctx, s.keys.playerTeams(r.PlayerID), teamMember(r.TeamName))
			pipe.SAdd(ctx, s.keys.playerReservations(r.PlayerID), r.ID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed redis: %w", err)
	}
	return nil
}
