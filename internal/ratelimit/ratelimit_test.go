package ratelimit

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rates map[Class]Rate) *Limiter {
	t.Helper()
	l, err := New(&Config{Logger: slog.New(slog.DiscardHandler), Rates: rates})
	require.NoError(t, err)
	return l
}

func TestArcade_Ratelimit_AdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, map[Class]Rate{
		ClassSubmit: {Limit: 5, Window: 2 * time.Second},
	})

	for i := 0; i < 5; i++ {
		require.True(t, l.Check(ClassSubmit, "s1:alice"), "event %d should be admitted", i)
	}
	require.False(t, l.Check(ClassSubmit, "s1:alice"))
}

func TestArcade_Ratelimit_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, map[Class]Rate{
		ClassTriviaSubmit: {Limit: 1, Window: 5 * time.Second},
	})

	require.True(t, l.Check(ClassTriviaSubmit, "s1:alice"))
	require.False(t, l.Check(ClassTriviaSubmit, "s1:alice"))
	require.True(t, l.Check(ClassTriviaSubmit, "s1:bob"))
	require.True(t, l.Check(ClassTriviaSubmit, "s2:alice"))
}

func TestArcade_Ratelimit_WindowSlides(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, map[Class]Rate{
		ClassSubmit: {Limit: 2, Window: 100 * time.Millisecond},
	})

	require.True(t, l.Check(ClassSubmit, "k"))
	require.True(t, l.Check(ClassSubmit, "k"))
	require.False(t, l.Check(ClassSubmit, "k"))

	time.Sleep(150 * time.Millisecond)
	require.True(t, l.Check(ClassSubmit, "k"))
}

func TestArcade_Ratelimit_UnknownClassAdmits(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, nil)
	require.True(t, l.Check(Class("nonexistent"), "k"))
}

func TestArcade_Ratelimit_DefaultRates(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, nil)
	for i := 0; i < 5; i++ {
		require.True(t, l.Check(ClassSubmit, "k"))
	}
	require.False(t, l.Check(ClassSubmit, "k"))

	require.True(t, l.Check(ClassTriviaSubmit, "k"))
	require.False(t, l.Check(ClassTriviaSubmit, "k"))
}

func TestArcade_Ratelimit_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{})
	require.Error(t, err)

	_, err = New(&Config{
		Logger: slog.New(slog.DiscardHandler),
		Rates:  map[Class]Rate{ClassSubmit: {Limit: 0, Window: time.Second}},
	})
	require.Error(t, err)
}
