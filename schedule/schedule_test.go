package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("computes the window from fractions", func(t *testing.T) {
		s, err := New(true, 0.1, 0.9, 100, 1)

		require.NoError(t, err)
		require.Equal(t, 10, s.StartStep())
		require.Equal(t, 90, s.EndStep())
	})

	t.Run("rounds rather than truncates", func(t *testing.T) {
		s, err := New(true, 0.125, 0.875, 100, 1)

		require.NoError(t, err)
		require.Equal(t, 13, s.StartStep())
		require.Equal(t, 88, s.EndStep())
	})

	t.Run("rejects fractions outside the unit interval", func(t *testing.T) {
		_, err := New(true, -0.1, 0.9, 100, 1)
		require.Error(t, err)

		_, err = New(true, 0.1, 1.1, 100, 1)
		require.Error(t, err)
	})

	t.Run("rejects a start fraction at or above the end fraction", func(t *testing.T) {
		_, err := New(true, 0.9, 0.1, 100, 1)
		require.Error(t, err)

		_, err = New(true, 0.5, 0.5, 100, 1)
		require.Error(t, err)
	})

	t.Run("rejects non-positive iteration counts", func(t *testing.T) {
		_, err := New(true, 0.1, 0.9, 0, 1)
		require.Error(t, err)
	})

	t.Run("rejects collection frequencies below one", func(t *testing.T) {
		_, err := New(true, 0.1, 0.9, 100, 0)
		require.Error(t, err)
	})
}

func TestEligible(t *testing.T) {
	t.Run("window bounds are inclusive-exclusive", func(t *testing.T) {
		s, err := New(true, 0.1, 0.9, 100, 1)
		require.NoError(t, err)

		require.False(t, s.Eligible(9), "Step 9 is before the window")
		require.True(t, s.Eligible(10))
		require.True(t, s.Eligible(89))
		require.False(t, s.Eligible(90), "Step 90 is past the window")
	})

	t.Run("disabled schedule is never eligible", func(t *testing.T) {
		s, err := New(false, 0.1, 0.9, 100, 1)
		require.NoError(t, err)

		require.False(t, s.Eligible(50))
	})

	t.Run("zero value is never eligible", func(t *testing.T) {
		var s Schedule
		require.False(t, s.Eligible(0))
		require.False(t, s.ActiveAt(0))
	})
}

func TestActiveAt(t *testing.T) {
	t.Run("frequency gate phases off the window start", func(t *testing.T) {
		s, err := New(true, 0.1, 0.9, 100, 2)
		require.NoError(t, err)

		require.True(t, s.ActiveAt(10))
		require.False(t, s.ActiveAt(11))
		require.True(t, s.ActiveAt(12))
		require.False(t, s.ActiveAt(13))
		require.True(t, s.ActiveAt(14))
	})

	t.Run("never active outside the window", func(t *testing.T) {
		s, err := New(true, 0.1, 0.9, 100, 2)
		require.NoError(t, err)

		require.False(t, s.ActiveAt(8), "Step 8 matches the phase but is ineligible")
		require.False(t, s.ActiveAt(90))
	})

	t.Run("unit frequency fires on every eligible step", func(t *testing.T) {
		s, err := New(true, 0.1, 0.9, 100, 1)
		require.NoError(t, err)

		for step := 10; step < 90; step++ {
			require.True(t, s.ActiveAt(step))
		}
	})
}
