package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeInsufficient:  {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient stock", DetailsAllowed: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, MetadataFor(code))
		})
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SHEET_ON_FIRE"))
}

func TestOrderStateErrorCarriesDetails(t *testing.T) {
	err := New(CodeStateConflict, "order already completed").
		WithDetails(map[string]any{"order_id": 7, "status": "completed"})

	assert.Equal(t, CodeStateConflict, err.Code())
	assert.Equal(t, "order already completed", err.Message())
	assert.Equal(t, "STATE_CONFLICT: order already completed", err.Error())
	assert.Equal(t, map[string]any{"order_id": 7, "status": "completed"}, err.Details())
}

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := stdErrors.New("sheets: 503 backendError")
	wrapped := Wrap(CodeDependency, cause, "spreadsheet unavailable")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeDependency, wrapped.Code())

	noCause := Wrap(CodeValidation, nil, "bad row")
	assert.Nil(t, noCause.Unwrap())
	assert.Equal(t, CodeValidation, noCause.Code())
}

func TestAsAndIsCodeWalkTheChain(t *testing.T) {
	err := fmt.Errorf("add item: %w", New(CodeInsufficient, "only 2 left"))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficient, typed.Code())

	assert.True(t, IsCode(err, CodeInsufficient))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(nil, CodeInsufficient))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestNilErrorAccessorsAreSafe(t *testing.T) {
	var err *Error
	assert.Equal(t, CodeInternal, err.Code())
	assert.Empty(t, err.Message())
	assert.Nil(t, err.Details())
	assert.Nil(t, err.WithDetails("x"))
}
