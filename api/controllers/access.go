package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/api/validators"
	"github.com/angelmondragon/stockledger/internal/access"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

// AccessGate is the password gate the chat front end consults.
type AccessGate interface {
	IsAuthorized(ctx context.Context, userID string) (bool, error)
	IsBanned(ctx context.Context, userID string) (bool, error)
	Ban(ctx context.Context, userID string) error
	Attempt(ctx context.Context, userID, password string) (access.AttemptResult, error)
}

type accessAttemptRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

type accessAttemptResponse struct {
	Outcome   string `json:"outcome"`
	Remaining int    `json:"remaining"`
}

type accessStatusResponse struct {
	UserID     string `json:"user_id"`
	Authorized bool   `json:"authorized"`
	Banned     bool   `json:"banned"`
}

// AccessAttempt checks a password on behalf of a chat user.
func AccessAttempt(gate AccessGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "access gate unavailable"))
			return
		}
		var req accessAttemptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithUserID(r.Context(), req.UserID)
		result, err := gate.Attempt(ctx, req.UserID, req.Password)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessAttemptResponse{Outcome: string(result.Outcome), Remaining: result.Remaining})
	}
}

// AccessStatus reports whether a user is authorized or banned.
func AccessStatus(gate AccessGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := accessUserID(w, r, gate, logg)
		if !ok {
			return
		}
		authorized, err := gate.IsAuthorized(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read access state"))
			return
		}
		banned, err := gate.IsBanned(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read access state"))
			return
		}
		responses.WriteSuccess(w, accessStatusResponse{UserID: userID, Authorized: authorized, Banned: banned})
	}
}

// AccessBan bans a user outright.
func AccessBan(gate AccessGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := accessUserID(w, r, gate, logg)
		if !ok {
			return
		}
		if err := gate.Ban(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ban user"))
			return
		}
		responses.WriteSuccess(w, accessStatusResponse{UserID: userID, Banned: true})
	}
}

func accessUserID(w http.ResponseWriter, r *http.Request, gate AccessGate, logg *logger.Logger) (string, bool) {
	if gate == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "access gate unavailable"))
		return "", false
	}
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id required"))
		return "", false
	}
	return userID, true
}
