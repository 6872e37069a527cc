package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name            string
		originalError   error
		message         string
		expectedMessage string
	}{
		{
			name:            "wrap simple error",
			originalError:   errors.New("original error"),
			message:         "wrapper message",
			expectedMessage: "wrapper message: original error",
		},
		{
			name:            "empty wrapper message",
			originalError:   errors.New("original error"),
			message:         "",
			expectedMessage: ": original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrappedError := WrapError(tt.originalError, tt.message)
			require.Error(t, wrappedError)
			assert.Equal(t, tt.expectedMessage, wrappedError.Error())
			assert.ErrorIs(t, wrappedError, tt.originalError)
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WrapError(nil, "wrapper message"))
		assert.NoError(t, WrapErrorf(nil, "asset %s", "x"))
	})
}

func TestWrapErrorf(t *testing.T) {
	err := WrapErrorf(ErrNotFound, "asset %s", "abc")
	assert.Equal(t, "asset abc: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewError(t *testing.T) {
	err := NewError("error with value: %d", 42)
	assert.Equal(t, "error with value: 42", err.Error())
}

func TestTypedErrors(t *testing.T) {
	t.Run("validation error", func(t *testing.T) {
		err := NewValidationError("seed_url", "ftp://x", "unsupported scheme")
		assert.Contains(t, err.Error(), "seed_url")
		assert.Contains(t, err.Error(), "unsupported scheme")
	})

	t.Run("configuration error unwraps to sentinel", func(t *testing.T) {
		err := NewConfigurationError("store_config", "driver", "unknown driver")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Equal(t, "configuration error in section 'store_config', field 'driver': unknown driver", err.Error())
		assert.Equal(t, "configuration error: bad", NewConfigurationError("", "", "bad").Error())
	})

	t.Run("network error unwraps cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewNetworkError("https://example.org", "dial failed", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "https://example.org")
	})

	t.Run("http error", func(t *testing.T) {
		err := NewHTTPErrorWithURL(http.StatusNotFound, "Not Found", "https://example.org/x")
		assert.Equal(t, "HTTP 404 error for URL 'https://example.org/x': Not Found", err.Error())
	})

	t.Run("policy error", func(t *testing.T) {
		err := NewPolicyError("https://example.org/", "disallowed by robots.txt")
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})

	t.Run("activation error", func(t *testing.T) {
		err := NewActivationError("asset-1", "robots disallowed")
		assert.ErrorIs(t, err, ErrActivationDenied)
		var ae *ActivationError
		require.ErrorAs(t, WrapError(err, "activate"), &ae)
		assert.Equal(t, "asset-1", ae.AssetID)
	})
}

func TestCombineErrors(t *testing.T) {
	single := errors.New("only")

	assert.NoError(t, CombineErrors(nil))
	assert.NoError(t, CombineErrors([]error{nil, nil}))
	assert.Same(t, single, CombineErrors([]error{nil, single}))

	err := CombineErrors([]error{errors.New("a"), nil, errors.New("b")})
	assert.Equal(t, "multiple errors occurred: [a; b]", err.Error())
}

func TestErrorCollector(t *testing.T) {
	var ec ErrorCollector
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Error())

	ec.Add(nil)
	ec.Add(errors.New("first"))
	ec.AddWithContext(errors.New("second"), "asset calculus-1")

	assert.True(t, ec.HasErrors())
	assert.Equal(t, []string{"first", "asset calculus-1: second"}, ec.Messages())
}
