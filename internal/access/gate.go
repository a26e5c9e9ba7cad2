package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/security"
)

const defaultMaxAttempts = 5

// Outcome is the result of a password attempt.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
	OutcomeBanned  Outcome = "banned"
)

// AttemptResult reports what a password attempt changed.
type AttemptResult struct {
	Outcome   Outcome
	Remaining int
}

// GateParams configure the access gate.
type GateParams struct {
	Store        Store
	PasswordHash string
	MaxAttempts  int
	Logger       *logger.Logger
}

// Gate decides whether a user may use the system. A user is banned once their
// failed attempts reach MaxAttempts.
type Gate struct {
	store       Store
	hash        string
	maxAttempts int
	logg        *logger.Logger
}

func NewGate(params GateParams) (*Gate, error) {
	if params.Store == nil {
		return nil, errors.New("access store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(params.PasswordHash) == "" {
		return nil, errors.New("access password hash required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Gate{
		store:       params.Store,
		hash:        strings.TrimSpace(params.PasswordHash),
		maxAttempts: maxAttempts,
		logg:        params.Logger,
	}, nil
}

func (g *Gate) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	return g.store.IsAuthorized(ctx, userID)
}

func (g *Gate) IsBanned(ctx context.Context, userID string) (bool, error) {
	return g.store.IsBanned(ctx, userID)
}

func (g *Gate) Authorize(ctx context.Context, userID string) error {
	if err := g.store.Authorize(ctx, userID); err != nil {
		return err
	}
	return g.store.ResetFailures(ctx, userID)
}

func (g *Gate) Ban(ctx context.Context, userID string) error {
	if err := g.store.Ban(ctx, userID); err != nil {
		return err
	}
	g.logg.Warn(g.logg.WithUserID(ctx, userID), "user banned")
	return nil
}

// RecordFailedAttempt counts a failure and returns how many attempts remain.
func (g *Gate) RecordFailedAttempt(ctx context.Context, userID string) (int, error) {
	count, err := g.store.IncrementFailures(ctx, userID)
	if err != nil {
		return 0, err
	}
	remaining := g.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Attempt checks password for userID, authorizing on a match and banning once
// no attempts remain.
func (g *Gate) Attempt(ctx context.Context, userID, password string) (AttemptResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AttemptResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	banned, err := g.store.IsBanned(ctx, userID)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return AttemptResult{Outcome: OutcomeBanned}, nil
	}

	ok, err := security.VerifyPassword(password, g.hash)
	if err != nil {
		return AttemptResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify access password")
	}
	if ok {
		if err := g.Authorize(ctx, userID); err != nil {
			return AttemptResult{}, fmt.Errorf("authorize: %w", err)
		}
		g.logg.Info(g.logg.WithUserID(ctx, userID), "user authorized")
		return AttemptResult{Outcome: OutcomeGranted, Remaining: g.maxAttempts}, nil
	}

	remaining, err := g.RecordFailedAttempt(ctx, userID)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("record failed attempt: %w", err)
	}
	if remaining == 0 {
		if err := g.Ban(ctx, userID); err != nil {
			return AttemptResult{}, fmt.Errorf("ban: %w", err)
		}
		return AttemptResult{Outcome: OutcomeBanned}, nil
	}
	return AttemptResult{Outcome: OutcomeDenied, Remaining: remaining}, nil
}
