package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/pricepulse/core"
	zerologger "github.com/raykavin/pricepulse/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := zerologger.New("disabled", "15:04:05", false, false)
	require.NoError(t, err)
	return log
}

// sinkStub records enqueued jobs in order.
type sinkStub struct {
	mu   sync.Mutex
	jobs []core.NotificationJob
	full bool
}

func (s *sinkStub) Enqueue(job core.NotificationJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.jobs = append(s.jobs, job)
	return true
}

func (s *sinkStub) all() []core.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.NotificationJob(nil), s.jobs...)
}

// messengerStub records alerts and can simulate delivery failures.
type messengerStub struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

type sentAlert struct {
	userID int64
	text   string
	links  []core.AlertLink
}

func (m *messengerStub) SendAlert(_ context.Context, userID int64, text string, links []core.AlertLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentAlert{userID: userID, text: text, links: links})
	return nil
}

func (m *messengerStub) all() []sentAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentAlert(nil), m.sent...)
}

// storeStub implements core.SubscriberStore over fixed data.
type storeStub struct {
	mu       sync.Mutex
	users    []core.UserConfig
	language string
	exchange string
	prefErr  error
	cleaned  int64
}

func (s *storeStub) SubscribedUsers(context.Context) ([]core.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.UserConfig(nil), s.users...), nil
}

func (s *storeStub) CleanupExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaned++
	return 0, nil
}

func (s *storeStub) Preferences(context.Context, int64) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefErr != nil {
		return "", "", s.prefErr
	}
	return s.language, s.exchange, nil
}

func (s *storeStub) setUsers(users []core.UserConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

// resolverStub implements core.LinkResolver with a fixed listing answer.
type resolverStub struct {
	listed bool
}

func (r *resolverStub) SymbolListed(context.Context, string, string) (bool, error) {
	return r.listed, nil
}

func (r *resolverStub) Links(symbol, exchange, _ string) []core.AlertLink {
	return []core.AlertLink{{Label: "open " + exchange, URL: "https://example.test/" + symbol}}
}

func fixedClock(at time.Time) core.Clock {
	return func() time.Time { return at }
}
