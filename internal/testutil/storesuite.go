package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
)

// StoreBackend is a repository.Store that can be loaded with fixtures.
type StoreBackend interface {
	repository.Store
	repository.Seeder
}

// StoreSuite checks the behaviour every Store backend shares. Backends
// embed it and set Open, which must return an empty store for each test.
type StoreSuite struct {
	suite.Suite
	Open func() StoreBackend

	Ctx   context.Context
	Store StoreBackend
}

func (s *StoreSuite) SetupTest() {
	s.Ctx = context.Background()
	s.Store = s.Open()
	s.Require().NoError(s.Store.Seed(s.Ctx, Fixtures()))
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.Store.Ping(s.Ctx))
}

func (s *StoreSuite) TestGetPlayer() {
	p, err := s.Store.GetPlayer(s.Ctx, PlayerID)
	s.Require().NoError(err)
	s.Equal(PlayerID, p.ID)
	s.Equal(PlayerPassword, p.Password)
	s.Equal(PlayerBirthDate, p.BirthDate.Format(model.BirthDateLayout))
	s.True(p.Active)
	s.NotEmpty(p.DisplayName)

	p, err = s.Store.GetPlayer(s.Ctx, InactivePlayerID)
	s.Require().NoError(err)
	s.False(p.Active)

	_, err = s.Store.GetPlayer(s.Ctx, 999)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestTeamReservationExists() {
	tests := []struct {
		name   string
		player int64
		team   string
		want   bool
	}{
		{name: "exact name", player: PlayerID, team: Team, want: true},
		{name: "case differs", player: PlayerID, team: "LES AIGLES", want: true},
		{name: "other confirmed team", player: PlayerID, team: "Les Lions", want: true},
		{name: "pending reservation", player: PlayerID, team: "Les Ours", want: false},
		{name: "unknown team", player: PlayerID, team: "Les Loups", want: false},
		{name: "player without bookings", player: NoBookingID, team: Team, want: false},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.Store.TeamReservationExists(s.Ctx, tt.player, tt.team)
			s.Require().NoError(err)
			s.Equal(tt.want, got)
		})
	}
}

func (s *StoreSuite) TestActiveReservationExists() {
	ok, err := s.Store.ActiveReservationExists(s.Ctx, PlayerID)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.Store.ActiveReservationExists(s.Ctx, NoBookingID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestActiveReservationExistsIgnoresRedeemed() {
	s.Require().NoError(s.Store.CommitRedemption(s.Ctx, model.TicketRef{ReservationID: ResOther}, Now))

	ok, err := s.Store.ActiveReservationExists(s.Ctx, HashedPlayerID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestLookupRedemptionByReservation() {
	st, err := s.Store.LookupRedemption(s.Ctx, model.TicketRef{ReservationID: ResActive})
	s.Require().NoError(err)

	s.Equal(ResActive, st.ReservationID)
	s.Equal(PlayerID, st.OwnerID)
	s.Equal(model.ReservationConfirmed, st.ReservationStatus)
	s.Equal(CodeActive, st.Code)
	s.Equal(HashActive, st.SecretHash)
	s.True(st.Active())
	s.Nil(st.RedeemedAt)
	s.True(st.MatchStart.Equal(Now.Add(10*time.Minute)), "start %s", st.MatchStart)
	s.True(st.MatchEnd.Equal(Now.Add(10*time.Minute+MatchSoonEnds)), "end %s", st.MatchEnd)
}

func (s *StoreSuite) TestLookupRedemptionByCode() {
	st, err := s.Store.LookupRedemption(s.Ctx, model.TicketRef{Code: CodeLegacy})
	s.Require().NoError(err)
	s.Equal(ResLegacy, st.ReservationID)
	s.Empty(st.SecretHash)
	s.True(st.ReservationStatus.Confirmed())

	st, err = s.Store.LookupRedemption(s.Ctx, model.TicketRef{ReservationID: ResLater})
	s.Require().NoError(err)
	s.True(st.MatchEnd.IsZero())
}

func (s *StoreSuite) TestLookupRedemptionMissing() {
	_, err := s.Store.LookupRedemption(s.Ctx, model.TicketRef{ReservationID: 999})
	s.ErrorIs(err, repository.ErrNotFound)

	_, err = s.Store.LookupRedemption(s.Ctx, model.TicketRef{Code: "RES-999-00000000"})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestCommitRedemptionOnce() {
	ref := model.TicketRef{ReservationID: ResActive}

	s.Require().NoError(s.Store.CommitRedemption(s.Ctx, ref, Now))
	s.ErrorIs(s.Store.CommitRedemption(s.Ctx, ref, Now.Add(time.Second)), repository.ErrAlreadyRedeemed)

	st, err := s.Store.LookupRedemption(s.Ctx, ref)
	s.Require().NoError(err)
	s.Equal(model.TicketInactive, st.State)
	s.Require().NotNil(st.RedeemedAt)
	s.True(st.RedeemedAt.Equal(Now), "redeemed at %s", st.RedeemedAt)
}

func (s *StoreSuite) TestCommitRedemptionByCode() {
	s.Require().NoError(s.Store.CommitRedemption(s.Ctx, model.TicketRef{Code: CodeLegacy}, Now))

	st, err := s.Store.LookupRedemption(s.Ctx, model.TicketRef{ReservationID: ResLegacy})
	s.Require().NoError(err)
	s.False(st.Active())
}

func (s *StoreSuite) TestCommitRedemptionRefusals() {
	err := s.Store.CommitRedemption(s.Ctx, model.TicketRef{ReservationID: ResUsed}, Now)
	s.ErrorIs(err, repository.ErrAlreadyRedeemed)

	err = s.Store.CommitRedemption(s.Ctx, model.TicketRef{ReservationID: 999}, Now)
	s.ErrorIs(err, repository.ErrNotFound)

	err = s.Store.CommitRedemption(s.Ctx, model.TicketRef{Code: "NOPE"}, Now)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestConcurrentCommitSucceedsOnce() {
	const gates = 16
	ref := model.TicketRef{ReservationID: ResActive}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	start := make(chan struct{})
	for range gates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := s.Store.CommitRedemption(s.Ctx, ref, Now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case s.ErrorIs(err, repository.ErrAlreadyRedeemed):
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(gates-1, rejected)
}
