package gate_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/clock"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/gate"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository/memory"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/testutil"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

// terminal is a scripted gate client.
type terminal struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *terminal {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &terminal{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *terminal) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *terminal) expect(want string) {
	c.t.Helper()
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	assert.Equal(c.t, want+"\n", line)
}

func (c *terminal) expectClosed() {
	c.t.Helper()
	_, err := c.r.ReadString('\n')
	assert.ErrorIs(c.t, err, io.EOF)
}

type ServerSuite struct {
	suite.Suite
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	store := memory.New()
	s.Require().NoError(store.Seed(ctx, testutil.Fixtures()))
	clk := clock.NewFake(testutil.Now)
	validator := ticket.NewValidator(store, ticket.PolicyStructured, ticket.Symmetric{Tolerance: 15 * time.Minute}, clk, testutil.Logger())
	proto, err := access.New(access.DefaultConfig(), store, validator, clk, testutil.Logger(), nil)
	s.Require().NoError(err)

	cfg := gate.DefaultConfig()
	cfg.IdleTimeout = 200 * time.Millisecond
	cfg.AcceptRate = 0
	srv := gate.NewServer(cfg, proto, testutil.Logger(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = ln.Addr().String()

	s.done = make(chan error, 1)
	go func() { s.done <- srv.Serve(ctx, ln) }()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}
}

func (s *ServerSuite) TestGrantedSession() {
	c := dial(s.T(), s.addr)

	c.send("ID_JOUEUR:158")
	c.expect(access.PromptBirthDate)
	c.send("DATE_NAISSANCE:1998-04-12")
	c.expect(access.PromptTeam)
	c.send("NOM_EQUIPE:Les Aigles")
	c.expect(access.PromptTicket)
	c.send("QR_CODE:" + testutil.CodeActive)
	c.expect(access.MsgGranted)
	c.expectClosed()
}

func (s *ServerSuite) TestMalformedSecretLineIsRetried() {
	c := dial(s.T(), s.addr)

	c.send("ID_JOUEUR:158")
	c.expect(access.PromptBirthDate)
	c.send("DATE_NAISSANCE:\xff\xfe")
	c.expect(access.ReasonWrongBirthDate + ", tentative 1/2")
	c.send("DATE_NAISSANCE:1998-04-12")
	c.expect(access.PromptTeam)
	c.send("NOM_EQUIPE:Les Aigles")
	c.expect(access.PromptTicket)
	c.send("QR_CODE:" + testutil.CodeActive)
	c.expect(access.MsgGranted)
}

func (s *ServerSuite) TestReplayIsRefused() {
	for i, want := range []string{access.MsgGranted, access.Refusal(ticket.ReasonAlreadyUsed)} {
		c := dial(s.T(), s.addr)
		c.send("ID_JOUEUR:158")
		c.expect(access.PromptBirthDate)
		c.send("DATE_NAISSANCE:1998-04-12")
		c.expect(access.PromptTeam)
		c.send("NOM_EQUIPE:Les Aigles")
		c.expect(access.PromptTicket)
		c.send("QR_CODE:" + testutil.CodeActive)
		c.expect(want)
		s.T().Logf("session %d done", i+1)
	}
}

func (s *ServerSuite) TestConcurrentSessionsAreIndependent() {
	a := dial(s.T(), s.addr)
	b := dial(s.T(), s.addr)

	a.send("ID_JOUEUR:158")
	b.send("ID_JOUEUR:999")
	b.expect(access.Refusal(access.ReasonUnknownPlayer))
	a.expect(access.PromptBirthDate)
	a.send("DATE_NAISSANCE:1998-04-12")
	a.expect(access.PromptTeam)
}

func (s *ServerSuite) TestIdleConnectionIsClosedSilently() {
	c := dial(s.T(), s.addr)

	c.send("ID_JOUEUR:158")
	c.expect(access.PromptBirthDate)
	c.expectClosed()
}

func (s *ServerSuite) TestMidSessionDisconnect() {
	c := dial(s.T(), s.addr)
	c.send("ID_JOUEUR:158")
	c.expect(access.PromptBirthDate)
	s.Require().NoError(c.conn.(*net.TCPConn).CloseWrite())

	c.expect(access.Refusal(access.ReasonDisconnected))
}

type greeter struct {
	calls atomic.Int32
	panic bool
}

func (g *greeter) Serve(_ context.Context, conn access.Conn, _ string) access.Outcome {
	if g.calls.Add(1) == 1 && g.panic {
		panic("first session explodes")
	}
	_ = conn.WriteLine("hello")
	return access.Outcome{Granted: true}
}

type connCounter struct {
	opened, closed, rejected atomic.Int32
}

func (c *connCounter) ConnectionOpened()         { c.opened.Add(1) }
func (c *connCounter) ConnectionClosed()         { c.closed.Add(1) }
func (c *connCounter) ConnectionRejected(string) { c.rejected.Add(1) }

func serveWith(t *testing.T, cfg gate.Config, h gate.SessionHandler, obs gate.ConnObserver) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := gate.NewServer(cfg, h, testutil.Logger(), obs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return ln.Addr().String()
}

func TestRateLimitedConnectionsAreDropped(t *testing.T) {
	cfg := gate.DefaultConfig()
	cfg.AcceptRate = 0.001
	cfg.AcceptBurst = 1
	obs := &connCounter{}
	addr := serveWith(t, cfg, &greeter{}, obs)

	first := dial(t, addr)
	first.expect("hello")

	second := dial(t, addr)
	second.expectClosed()

	assert.Eventually(t, func() bool { return obs.rejected.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return obs.closed.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), obs.opened.Load())
}

func TestPanickingSessionDoesNotStopServer(t *testing.T) {
	cfg := gate.DefaultConfig()
	cfg.AcceptRate = 0
	h := &greeter{panic: true}
	addr := serveWith(t, cfg, h, nil)

	first := dial(t, addr)
	first.expectClosed()

	second := dial(t, addr)
	second.expect("hello")
}

func TestListenAndServe(t *testing.T) {
	cfg := gate.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	srv := gate.NewServer(cfg, &greeter{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)
	c := dial(t, srv.Addr().String())
	c.expect("hello")

	cancel()
	require.NoError(t, <-done)
}
