package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("errors.Is works correctly", func(t *testing.T) {
		require.True(t, errors.Is(ErrVersionMismatch, ErrVersionMismatch))
		require.False(t, errors.Is(ErrVersionMismatch, ErrRecordExists))

		// Wrapped errors maintain identity.
		wrapped := fmt.Errorf("nats: %w", ErrVersionMismatch)
		require.True(t, errors.Is(wrapped, ErrVersionMismatch))
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			ErrStoreUnavailable,
			ErrRecordExists,
			ErrVersionMismatch,
			ErrCorruptRecord,
			ErrOnStartedLeadingRequired,
			ErrOnStoppedLeadingRequired,
		}

		for i, err1 := range allErrors {
			for j, err2 := range allErrors {
				if i == j {
					continue
				}
				require.False(t, errors.Is(err1, err2),
					"errors should be distinct: %v vs %v", err1, err2)
			}
		}
	})
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		conflict    bool
		unavailable bool
		corrupt     bool
	}{
		{
			name:     "record exists is a conflict",
			err:      fmt.Errorf("create: %w", ErrRecordExists),
			conflict: true,
		},
		{
			name:     "version mismatch is a conflict",
			err:      ErrVersionMismatch,
			conflict: true,
		},
		{
			name:        "unavailable",
			err:         fmt.Errorf("s3: %w", ErrStoreUnavailable),
			unavailable: true,
		},
		{
			name:    "corrupt",
			err:     fmt.Errorf("%w: decode", ErrCorruptRecord),
			corrupt: true,
		},
		{
			name: "unrelated error matches nothing",
			err:  errors.New("boom"),
		},
		{
			name: "nil error matches nothing",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.conflict, IsConflict(tt.err))
			require.Equal(t, tt.unavailable, IsUnavailable(tt.err))
			require.Equal(t, tt.corrupt, IsCorrupt(tt.err))
		})
	}
}
