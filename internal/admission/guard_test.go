package admission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard(t *testing.T) (*Guard, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewGuard(Config{SelfAuthorID: "app-self", Marker: "support-agent", Now: clock.Now})
	return g, clock
}

func userEvent(text string) domain.InboundEvent {
	return domain.InboundEvent{
		Type:           domain.EventTypeMessage,
		ConversationID: "conv-1",
		AuthorID:       "user-1",
		AuthorType:     domain.AuthorTypeUser,
		DisplayName:    "Jane Doe",
		MessageID:      "msg-1",
		Text:           text,
	}
}

func TestIsBotMessage_Rules(t *testing.T) {
	g, _ := newTestGuard(t)

	cases := []struct {
		name   string
		mutate func(e *domain.InboundEvent)
		rule   string
		bot    bool
	}{
		{name: "plain user", mutate: func(*domain.InboundEvent) {}},
		{name: "business author", mutate: func(e *domain.InboundEvent) { e.AuthorType = domain.AuthorTypeBusiness }, rule: "author_type", bot: true},
		{name: "app maker", mutate: func(e *domain.InboundEvent) { e.AuthorType = domain.AuthorTypeAppMaker }, rule: "author_type", bot: true},
		{name: "bot display name", mutate: func(e *domain.InboundEvent) { e.DisplayName = "Support Bot" }, rule: "display_name", bot: true},
		{name: "bracket bot name", mutate: func(e *domain.InboundEvent) { e.DisplayName = "[bot] relay" }, rule: "display_name", bot: true},
		{name: "name containing bot", mutate: func(e *domain.InboundEvent) { e.DisplayName = "Abbott" }},
		{name: "self author", mutate: func(e *domain.InboundEvent) { e.AuthorID = "app-self" }, rule: "self_author", bot: true},
		{name: "metadata marker", mutate: func(e *domain.InboundEvent) {
			e.Metadata = map[string]string{domain.MetadataOrigin: "support-agent"}
		}, rule: "automation_marker", bot: true},
		{name: "text marker", mutate: func(e *domain.InboundEvent) { e.Text = "hello [support-agent]" }, rule: "automation_marker", bot: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := userEvent("hello")
			tc.mutate(&e)
			rule, ok := g.MatchBot(e)
			require.Equal(t, tc.bot, ok)
			require.Equal(t, tc.rule, rule)
			require.Equal(t, tc.bot, g.IsBotMessage(e))
		})
	}
}

func TestDefaultBotRules_EmptyIdentityNeverMatches(t *testing.T) {
	rules := DefaultBotRules("", "")
	e := userEvent("hello")
	e.AuthorID = ""
	for _, r := range rules {
		require.False(t, r.Match(e), r.Name)
	}
}

func TestIsRateLimited_SixthInWindowRejected(t *testing.T) {
	g, clock := newTestGuard(t)

	for i := 1; i <= 5; i++ {
		require.False(t, g.IsRateLimited("user-1", fmt.Sprintf("m%d", i)), "message %d", i)
		clock.Advance(8 * time.Second)
	}
	require.False(t, g.IsRateLimited("user-2", "other"))
	require.True(t, g.IsRateLimited("user-1", "m6"))
	require.True(t, g.IsRateLimited("user-1", "m7"))
	require.Equal(t, 5, g.rate.Count("user-1", clock.Now()))
}

func TestIsRateLimited_RejectionDoesNotResetWindow(t *testing.T) {
	g, clock := newTestGuard(t)
	for i := 0; i < 5; i++ {
		require.False(t, g.IsRateLimited("user-1", ""))
	}
	require.True(t, g.IsRateLimited("user-1", ""))

	clock.Advance(30 * time.Second)
	require.True(t, g.IsRateLimited("user-1", ""))

	clock.Advance(30 * time.Second)
	require.False(t, g.IsRateLimited("user-1", ""), "new window grants a fresh allowance")
}

func TestIsRateLimited_RetryCountsOnce(t *testing.T) {
	g, clock := newTestGuard(t)
	for i := 0; i < 4; i++ {
		require.False(t, g.IsRateLimited("user-1", "same"))
	}
	require.Equal(t, 1, g.rate.Count("user-1", clock.Now()))
	for i := 2; i <= 5; i++ {
		require.False(t, g.IsRateLimited("user-1", fmt.Sprintf("m%d", i)))
	}
	require.True(t, g.IsRateLimited("user-1", "m6"))
	require.False(t, g.IsRateLimited("user-1", "same"), "already counted message stays admitted")
}

func TestIsRateLimited_ConcurrentSingleSlot(t *testing.T) {
	g, _ := newTestGuard(t)
	for i := 0; i < 4; i++ {
		require.False(t, g.IsRateLimited("user-1", ""))
	}

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !g.IsRateLimited("user-1", fmt.Sprintf("race-%d", i)) {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), admitted.Load())
}

func TestIsDuplicate_ByMessageID(t *testing.T) {
	g, clock := newTestGuard(t)

	require.False(t, g.IsDuplicate("conv-1", "hello", "msg-1"))
	require.True(t, g.IsDuplicate("conv-1", "hello", "msg-1"))
	require.True(t, g.IsDuplicate("conv-1", "completely different", "msg-1"))

	clock.Advance(10 * time.Minute)
	require.True(t, g.IsDuplicate("conv-9", "", "msg-1"), "id records outlive the content window")

	require.False(t, g.IsDuplicate("conv-1", "hello", "msg-2"), "same text with a new id is not a duplicate")
}

func TestIsDuplicate_ContentFallback(t *testing.T) {
	g, clock := newTestGuard(t)
	prefix := "this text is long enough to be cut after fifty chars"

	require.False(t, g.IsDuplicate("conv-1", prefix+" AAA", ""))
	require.True(t, g.IsDuplicate("conv-1", prefix+" BBB", ""), "identical 50-char prefix collides")
	require.False(t, g.IsDuplicate("conv-2", prefix, ""), "other conversation")

	clock.Advance(time.Minute)
	require.False(t, g.IsDuplicate("conv-1", prefix+" AAA", ""), "next bucket")
}

func TestSweep_PurgesExpiredState(t *testing.T) {
	g, clock := newTestGuard(t)
	require.False(t, g.IsRateLimited("user-1", "m1"))
	require.False(t, g.IsDuplicate("conv-1", "hello", ""))
	require.False(t, g.IsDuplicate("conv-1", "hello", "msg-1"))

	buckets, records := g.Sweep(clock.Now())
	require.Zero(t, buckets)
	require.Zero(t, records)

	clock.Advance(3 * time.Minute)
	buckets, records = g.Sweep(clock.Now())
	require.Equal(t, 1, buckets)
	require.Equal(t, 1, records)
	require.Equal(t, 1, g.dedup.Len(), "id record retained")

	clock.Advance(time.Hour)
	_, records = g.Sweep(clock.Now())
	require.Equal(t, 1, records)
	require.Zero(t, g.dedup.Len())
	require.Zero(t, g.rate.Len())
}

func TestSweep_ConcurrentWithChecks(t *testing.T) {
	g, clock := newTestGuard(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			g.Sweep(clock.Now())
		}
	}()

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("msg-%d", i)
		require.False(t, g.IsDuplicate("conv-1", "hi", id))
		require.True(t, g.IsDuplicate("conv-1", "hi", id))
	}
	cancel()
	wg.Wait()
}

func TestRun_StopsOnCancel(t *testing.T) {
	g := NewGuard(Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
