package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/idanmel/skyarena/internal/dependencies/mocks"
	"github.com/idanmel/skyarena/internal/protocol"
	"github.com/idanmel/skyarena/internal/services/account"
	"github.com/idanmel/skyarena/internal/services/shop"
	"github.com/idanmel/skyarena/internal/storage/memory"
	"github.com/idanmel/skyarena/internal/testutil"
	"github.com/idanmel/skyarena/internal/world"
)

type SessionSuite struct {
	suite.Suite
	storage  *memory.Storage
	accounts *account.Service
	clock    *mocks.MockClock
	registry *world.Registry
	sess     *Session
	client   net.Conn
	done     chan struct{}
	cancel   context.CancelFunc
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.registry = world.NewRegistry()

	acctCfg := account.DefaultConfig()
	acctCfg.BcryptCost = 4
	s.accounts = account.New(s.storage, s.clock, testutil.NopLogger(), acctCfg)
	shopSvc := shop.New(s.storage, testutil.NopLogger(), shop.DefaultCatalog())

	serverConn, clientConn := net.Pipe()
	s.client = clientConn

	// nil key: the state machine is exercised without the encryption layer,
	// which the codec tests cover on their own.
	s.sess = New(serverConn, nil, s.accounts, shopSvc, s.registry, s.clock,
		testutil.NopLogger(), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		s.sess.Run(ctx)
		close(s.done)
	}()
}

func (s *SessionSuite) TearDownTest() {
	_ = s.client.Close()
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.Fail("session goroutine did not exit")
	}
}

// send writes one request frame from the client side.
func (s *SessionSuite) send(payload string) {
	frame, err := protocol.EncodeFrame([]byte(payload), nil)
	s.Require().NoError(err)
	_ = s.client.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err = s.client.Write(frame)
	s.Require().NoError(err)
}

// recv reads one reply frame on the client side.
func (s *SessionSuite) recv() string {
	_ = s.client.SetReadDeadline(time.Now().Add(5 * time.Second))
	payload, err := protocol.DecodeFrame(s.client, nil)
	s.Require().NoError(err)
	return string(payload)
}

// roundTrip sends a request and returns the reply.
func (s *SessionSuite) roundTrip(payload string) string {
	s.send(payload)
	return s.recv()
}

// signupAlice moves the session into the select window with a fresh account.
func (s *SessionSuite) signupAlice() {
	s.Require().Equal("SGNA#1", s.roundTrip("SGNR#alice$secret"))
}

// LoginOrSignup state

func (s *SessionSuite) TestLoginUnknownUser() {
	s.Equal("LOGA#0", s.roundTrip("LOGR#alice$secret"))
	// Still pre-login: shop is answered with the generic failure
	s.Equal("ERRA#0", s.roundTrip("SHPR#"))
}

func (s *SessionSuite) TestLoginWithSeededAccount() {
	_, err := s.accounts.Signup(context.Background(), "alice", "secret")
	s.Require().NoError(err)

	s.Equal("LOGA#1", s.roundTrip("LOGR#alice$secret"))
	s.Equal("SHPA#500$F-16", s.roundTrip("SHPR#"))
}

func (s *SessionSuite) TestLoginWrongPassword() {
	_, err := s.accounts.Signup(context.Background(), "alice", "secret")
	s.Require().NoError(err)

	s.Equal("LOGA#0", s.roundTrip("LOGR#alice$wrong"))
}

func (s *SessionSuite) TestSignupThenShop() {
	s.signupAlice()
	s.Equal("SHPA#500$F-16", s.roundTrip("SHPR#"))
}

func (s *SessionSuite) TestSignupDuplicate() {
	_, err := s.accounts.Signup(context.Background(), "alice", "secret")
	s.Require().NoError(err)

	s.Equal("SGNA#0", s.roundTrip("SGNR#alice$other"))
}

func (s *SessionSuite) TestWorldActionsRejectedBeforeLogin() {
	s.Equal("ERRA#0", s.roundTrip("BUYR#MiG-25"))
	s.Equal("ERRA#0", s.roundTrip("SELR#F-16|tok"))
	// The session survives and can still authenticate
	s.signupAlice()
}

func (s *SessionSuite) TestMalformedRequestAnsweredGenerically() {
	s.Equal("ERRA#0", s.roundTrip("LOGR#nodollar"))
	s.signupAlice()
}

// SelectWindow state

func (s *SessionSuite) TestBuyFlow() {
	s.signupAlice()

	s.Equal("BUYA#1", s.roundTrip("BUYR#MiG-25"))
	s.Equal("SHPA#200$F-16|MiG-25", s.roundTrip("SHPR#"))

	// 800 > 200 remaining
	s.Equal("BUYA#0", s.roundTrip("BUYR#B-2"))
	// Already owned
	s.Equal("BUYA#0", s.roundTrip("BUYR#MiG-25"))
	// Not in the catalog
	s.Equal("BUYA#0", s.roundTrip("BUYR#X-wing"))
}

func (s *SessionSuite) TestSelectUnownedAircraftStaysInSelect() {
	s.signupAlice()

	s.Equal("SELA#0", s.roundTrip("SELR#MiG-25|tok123"))

	records, _ := s.registry.Snapshot()
	s.Empty(records)

	// Still in the select window
	s.Equal("SHPA#500$F-16", s.roundTrip("SHPR#"))
}

func (s *SessionSuite) TestSelectOwnedAircraftEntersWorld() {
	s.signupAlice()

	s.Equal("SELA#1", s.roundTrip("SELR#F-16|tok123"))

	records, _ := s.registry.Snapshot()
	s.Require().Len(records, 1)
	s.Equal("alice", records[0].Username)
	s.Equal("F-16", records[0].Aircraft)

	// Select-window actions are now answered generically
	s.Equal("ERRA#0", s.roundTrip("SHPR#"))
	s.Equal("ERRA#0", s.roundTrip("BUYR#MiG-25"))
}

// OpenWorld state

func (s *SessionSuite) TestExitToSelectCreditsFlightTime() {
	s.signupAlice()
	s.Equal("SELA#1", s.roundTrip("SELR#F-16|tok123"))

	// 25s of flight at one unit per 10s earns 2
	s.clock.Advance(25 * time.Second)
	s.send("EXTG#")

	// Back in the select window with the reward credited
	s.Equal("SHPA#502$F-16", s.roundTrip("SHPR#"))

	records, _ := s.registry.Snapshot()
	s.Empty(records)
}

func (s *SessionSuite) TestExitClientClosesSession() {
	s.signupAlice()
	s.Equal("SELA#1", s.roundTrip("SELR#F-16|tok123"))

	s.clock.Advance(10 * time.Second)
	s.send("EXTC#")

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("session did not close after EXTC")
	}

	records, _ := s.registry.Snapshot()
	s.Empty(records)

	acct, err := s.storage.GetAccount(context.Background(), "alice")
	s.Require().NoError(err)
	s.Equal(int64(501), acct.Balance)
}

func (s *SessionSuite) TestTransportErrorTriggersCleanupExactlyOnce() {
	s.signupAlice()
	s.Equal("SELA#1", s.roundTrip("SELR#F-16|tok123"))
	s.clock.Advance(30 * time.Second)

	// Simulate the peer vanishing mid-world
	_ = s.client.Close()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("session did not tear down after transport error")
	}

	records, _ := s.registry.Snapshot()
	s.Empty(records)

	acct, err := s.storage.GetAccount(context.Background(), "alice")
	s.Require().NoError(err)
	s.Equal(int64(503), acct.Balance)

	// Triggering the teardown path again must not credit twice
	s.sess.Teardown(context.Background())
	acct, _ = s.storage.GetAccount(context.Background(), "alice")
	s.Equal(int64(503), acct.Balance)
}

func (s *SessionSuite) TestDisconnectWithoutWorldEntryIsClean() {
	s.signupAlice()
	_ = s.client.Close()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("session did not tear down")
	}

	acct, _ := s.storage.GetAccount(context.Background(), "alice")
	s.Equal(int64(500), acct.Balance)
}

func (s *SessionSuite) TestShutdownNoticeReachesClient() {
	s.signupAlice()

	// net.Pipe writes are synchronous, so the notice must be read while it
	// is being sent.
	go s.sess.NotifyShutdown()
	s.Equal("EXTS#", s.recv())
}
