package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type countingAuth struct {
	calls int
	err   error
}

func (c *countingAuth) Reauthenticate(context.Context) error {
	c.calls++
	return c.err
}

var fastPolicy = RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}

func TestDoRetriesAuthFailuresAndReauthenticates(t *testing.T) {
	auth := &countingAuth{}
	attempts := 0
	err := Do(context.Background(), fastPolicy, auth, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &googleapi.Error{Code: http.StatusUnauthorized}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, auth.calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	auth := &countingAuth{}
	attempts := 0
	err := Do(context.Background(), fastPolicy, auth, func(context.Context) error {
		attempts++
		return &googleapi.Error{Code: http.StatusUnauthorized}
	})

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	permanent := errors.New("invalid range")
	err := Do(context.Background(), fastPolicy, nil, func(context.Context) error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestDoKeepsReauthFailureInChain(t *testing.T) {
	reauthErr := fmt.Errorf("credentials revoked")
	auth := &countingAuth{err: reauthErr}
	err := Do(context.Background(), RetryPolicy{MaxAttempts: 1, BaseBackoff: time.Millisecond}, auth, func(context.Context) error {
		return &googleapi.Error{Code: http.StatusUnauthorized}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, reauthErr)
	assert.True(t, IsAuthError(err))
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Hour}, nil, func(context.Context) error {
		attempts++
		cancel()
		return &googleapi.Error{Code: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
