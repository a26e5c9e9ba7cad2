package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

type attemptBody struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"user_id":"42","password":"pw"}`))
	var body attemptBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "42", body.UserID)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"user_id":""}`))
	var body attemptBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["user_id"])
	assert.Equal(t, "is required", details["password"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"user_id":"1","password":"x","admin":true}`))
	var body attemptBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
