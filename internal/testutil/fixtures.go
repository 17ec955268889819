// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

// Now is the reference time of the fixtures: ten minutes before kick-off
// of MatchSoon.
var Now = time.Date(2026, 10, 15, 20, 20, 0, 0, time.UTC)

// Fixture ids and secrets.
const (
	PlayerID         int64 = 158
	PlayerPassword         = "1234"
	PlayerBirthDate        = "1998-04-12"
	HashedPlayerID   int64 = 200
	HashedPassword         = "s3cret-gate"
	InactivePlayerID int64 = 300
	NoBookingID      int64 = 201

	MatchSoon  int64 = 401
	MatchLater int64 = 402

	Team = "Les Aigles"

	// Reservation 12 belongs to PlayerID, match soon, active.
	ResActive     int64 = 12
	CodeActive          = "RES-12-deadbeef"
	HashActive          = "deadbeefcafebabe0011223344556677"
	ResLater      int64 = 13
	CodeLater           = "RES-13-01234567"
	HashLater           = "0123456789abcdef0123456789abcdef"
	ResOther      int64 = 14
	CodeOther           = "RES-14-abcdef01"
	HashOther           = "abcdef0123456789abcdef0123456789"
	ResPending    int64 = 15
	CodePending         = "RES-15-11112222"
	HashPending         = "1111222233334444aaaabbbbccccdddd"
	ResUsed       int64 = 16
	CodeUsed            = "RES-16-feedface"
	HashUsed            = "feedfacefeedfacefeedfacefeedface"
	ResLegacy     int64 = 17
	CodeLegacy          = "ABC123XYZ"
	MatchSoonEnds       = 2 * time.Hour
)

// Logger returns a logger that discards all output.
func Logger() *zap.Logger {
	return zap.NewNop()
}

// Fixtures returns a fresh fixture set relative to Now.
func Fixtures() *repository.Fixtures {
	hashed, err := bcrypt.GenerateFromPassword([]byte(HashedPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	birth := func(s string) time.Time {
		t, err := time.Parse(model.BirthDateLayout, s)
		if err != nil {
			panic(err)
		}
		return t
	}
	soon := Now.Add(10 * time.Minute)

	return &repository.Fixtures{
		Players: []model.Player{
			{ID: PlayerID, DisplayName: gofakeit.Name(), Password: PlayerPassword, BirthDate: birth(PlayerBirthDate), Active: true},
			{ID: HashedPlayerID, DisplayName: gofakeit.Name(), Password: string(hashed), BirthDate: birth("2001-11-03"), Active: true},
			{ID: NoBookingID, DisplayName: gofakeit.Name(), Password: "0000", BirthDate: birth("1990-01-01"), Active: true},
			{ID: InactivePlayerID, DisplayName: gofakeit.Name(), Password: "9999", BirthDate: birth("1985-06-30"), Active: false},
		},
		Matches: []model.Match{
			{ID: MatchSoon, StartsAt: soon, EndsAt: soon.Add(MatchSoonEnds)},
			{ID: MatchLater, StartsAt: Now.Add(72 * time.Hour)},
		},
		Reservations: []model.Reservation{
			{ID: ResActive, PlayerID: PlayerID, MatchID: MatchSoon, TeamName: Team, Status: model.ReservationConfirmed},
			{ID: ResLater, PlayerID: PlayerID, MatchID: MatchLater, TeamName: "Les Lions", Status: model.ReservationConfirmed},
			{ID: ResOther, PlayerID: HashedPlayerID, MatchID: MatchSoon, TeamName: Team, Status: model.ReservationConfirmed},
			{ID: ResPending, PlayerID: PlayerID, MatchID: MatchSoon, TeamName: "Les Ours", Status: model.ReservationPending},
			{ID: ResUsed, PlayerID: PlayerID, MatchID: MatchSoon, TeamName: Team, Status: model.ReservationConfirmed},
			{ID: ResLegacy, PlayerID: PlayerID, MatchID: MatchSoon, TeamName: Team},
		},
		Tickets: []model.Ticket{
			{ReservationID: ResActive, Code: CodeActive, SecretHash: HashActive, State: model.TicketActive},
			{ReservationID: ResLater, Code: CodeLater, SecretHash: HashLater, State: model.TicketActive},
			{ReservationID: ResOther, Code: CodeOther, SecretHash: HashOther, State: model.TicketActive},
			{ReservationID: ResPending, Code: CodePending, SecretHash: HashPending, State: model.TicketActive},
			{ReservationID: ResUsed, Code: CodeUsed, SecretHash: HashUsed, State: model.TicketInactive},
			{ReservationID: ResLegacy, Code: CodeLegacy, State: model.TicketActive},
		},
	}
}
