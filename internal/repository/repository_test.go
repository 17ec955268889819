package repository_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/testutil"
)

const fixturesYAML = `
players:
  - id: 158
    display_name: Camille Martin
    password: "1234"
    birth_date: 1998-04-12
    active: true
matches:
  - id: 401
    starts_at: 2026-10-15T20:30:00Z
reservations:
  - id: 12
    player_id: 158
    match_id: 401
    team_name: Les Aigles
    status: confirmed
tickets:
  - reservation_id: 12
    code: RES-12-deadbeef
    secret_hash: deadbeefcafebabe
`

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixturesYAML), 0o600))

	f, err := repository.LoadFixtures(path)
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	require.Len(t, f.Players, 1)
	assert.Equal(t, "1998-04-12", f.Players[0].BirthDate.Format(model.BirthDateLayout))
	assert.Equal(t, model.ReservationConfirmed, f.Reservations[0].Status)
	assert.Equal(t, model.TicketActive, f.Tickets[0].State)
	assert.True(t, f.Matches[0].EndsAt.IsZero())
}

func TestLoadFixturesPlayersDefaultToActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
players:
  - id: 1
    password: x
  - id: 2
    password: y
    active: false
`), 0o600))

	f, err := repository.LoadFixtures(path)
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	require.Len(t, f.Players, 2)
	assert.True(t, f.Players[0].Active, "missing active key means active")
	assert.False(t, f.Players[1].Active)
}

func TestLoadFixturesErrors(t *testing.T) {
	_, err := repository.LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("players: [::"), 0o600))
	_, err = repository.LoadFixtures(path)
	assert.Error(t, err)
}

func TestFixturesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *repository.Fixtures)
		errMsg string
	}{
		{
			name:   "shared fixtures are valid",
			mutate: func(*repository.Fixtures) {},
		},
		{
			name:   "non positive player id",
			mutate: func(f *repository.Fixtures) { f.Players[0].ID = 0 },
			errMsg: "player id must be positive",
		},
		{
			name:   "match without start",
			mutate: func(f *repository.Fixtures) { f.Matches[0].StartsAt = time.Time{} },
			errMsg: "has no start time",
		},
		{
			name:   "reservation for unknown player",
			mutate: func(f *repository.Fixtures) { f.Reservations[0].PlayerID = 999 },
			errMsg: "unknown player 999",
		},
		{
			name:   "reservation for unknown match",
			mutate: func(f *repository.Fixtures) { f.Reservations[0].MatchID = 999 },
			errMsg: "unknown match 999",
		},
		{
			name:   "ticket for unknown reservation",
			mutate: func(f *repository.Fixtures) { f.Tickets[0].ReservationID = 999 },
			errMsg: "unknown reservation 999",
		},
		{
			name:   "ticket without code",
			mutate: func(f *repository.Fixtures) { f.Tickets[0].Code = "" },
			errMsg: "has no code",
		},
		{
			name:   "duplicate code",
			mutate: func(f *repository.Fixtures) { f.Tickets[1].Code = f.Tickets[0].Code },
			errMsg: "duplicate ticket code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.Fixtures()
			tt.mutate(f)
			err := f.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
