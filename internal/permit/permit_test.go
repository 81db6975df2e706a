package permit

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	r, err := New(&Config{Logger: slog.New(slog.DiscardHandler), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestArcade_Permit_GrantThenConsume(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, time.Minute)
	ttl := r.Grant("s1", "alice")
	require.Equal(t, time.Minute, ttl)
	require.True(t, r.Consume("s1", "alice"))
}

func TestArcade_Permit_SingleUse(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, time.Minute)
	r.Grant("s1", "alice")
	require.True(t, r.Consume("s1", "alice"))
	require.False(t, r.Consume("s1", "alice"))
}

func TestArcade_Permit_AbsentWithoutGrant(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, time.Minute)
	require.False(t, r.Consume("s1", "alice"))
}

func TestArcade_Permit_ScopedToSessionAndUser(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, time.Minute)
	r.Grant("s1", "alice")
	require.False(t, r.Consume("s1", "bob"))
	require.False(t, r.Consume("s2", "alice"))
	require.True(t, r.Consume("s1", "alice"))
}

func TestArcade_Permit_ExpiresSilently(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, 50*time.Millisecond)
	r.Grant("s1", "alice")
	time.Sleep(120 * time.Millisecond)
	require.False(t, r.Consume("s1", "alice"))
}

func TestArcade_Permit_ConcurrentConsumeExactlyOne(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, time.Minute)
	r.Grant("s1", "alice")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Consume("s1", "alice")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}
