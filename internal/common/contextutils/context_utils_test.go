package contextutils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckCancellationWithLog(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name        string
		ctx         context.Context
		expectError bool
	}{
		{name: "normal context", ctx: context.Background()},
		{name: "cancelled context", ctx: cancelled, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckCancellationWithLog(tt.ctx, zerolog.Nop(), "scan_asset")
			assert.Equal(t, tt.expectError, result.Cancelled)
			assert.Equal(t, tt.expectError, result.Error != nil)
		})
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
	assert.False(t, IsCancellation(errors.New("connection refused")))
}
