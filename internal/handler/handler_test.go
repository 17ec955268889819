package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/handler"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/metrics"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/model"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository/memory"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/service"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/testutil"
)

type downStore struct {
	repository.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func (downStore) LookupRedemption(context.Context, model.TicketRef) (*model.RedemptionState, error) {
	return nil, errors.New("connection refused")
}

type AdminHandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *memory.Store
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	s.store = memory.New()
	s.Require().NoError(s.store.Seed(context.Background(), testutil.Fixtures()))
	s.router = s.newRouter(s.store)
}

func (s *AdminHandlerSuite) newRouter(store repository.Store) http.Handler {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	h := handler.NewAdminHandler(service.NewAdminService(store))
	return handler.NewRouter(h, reg, testutil.Logger())
}

func (s *AdminHandlerSuite) get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func (s *AdminHandlerSuite) TestHealth() {
	rec := s.get(s.router, "/health")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	rec = s.get(s.newRouter(downStore{Store: s.store}), "/health")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *AdminHandlerSuite) TestGetTicket() {
	rec := s.get(s.router, "/tickets/12")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(float64(testutil.ResActive), body["reservation_id"])
	s.Equal(float64(testutil.PlayerID), body["owner_id"])
	s.Equal("active", body["state"])
	s.Equal(testutil.CodeActive, body["code"])
	s.NotContains(body, "secret_hash")
	s.NotContains(body, "SecretHash")
}

func (s *AdminHandlerSuite) TestGetRedeemedTicket() {
	s.Require().NoError(s.store.CommitRedemption(context.Background(), model.TicketRef{ReservationID: testutil.ResActive}, testutil.Now))

	rec := s.get(s.router, "/tickets/12")
	s.Require().Equal(http.StatusOK, rec.Code)

	var st model.RedemptionState
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &st))
	s.Equal(model.TicketInactive, st.State)
	s.Require().NotNil(st.RedeemedAt)
	s.True(st.RedeemedAt.Equal(testutil.Now))
}

func (s *AdminHandlerSuite) TestGetTicketErrors() {
	tests := []struct {
		name   string
		router http.Handler
		path   string
		status int
	}{
		{name: "not a number", path: "/tickets/abc", status: http.StatusBadRequest},
		{name: "zero id", path: "/tickets/0", status: http.StatusBadRequest},
		{name: "unknown reservation", path: "/tickets/999", status: http.StatusNotFound},
		{name: "store down", router: s.newRouter(downStore{Store: s.store}), path: "/tickets/12", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			router := tt.router
			if router == nil {
				router = s.router
			}
			rec := s.get(router, tt.path)
			s.Equal(tt.status, rec.Code)

			var body handler.ErrorResponse
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
			s.NotEmpty(body.Error)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ConnectionOpened()

	h := handler.NewAdminHandler(service.NewAdminService(memory.New()))
	router := handler.NewRouter(h, reg, testutil.Logger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stadium_gate_conn_open 1")
}
