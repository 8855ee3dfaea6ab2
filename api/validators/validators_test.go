package validators

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
)

func TestParseDate(t *testing.T) {
	raw := "2026-03-10"
	got, err := ParseDate("expiry_date", &raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), *got)

	empty := " "
	got, err = ParseDate("expiry_date", &empty)
	require.NoError(t, err)
	assert.Nil(t, got)

	bad := "10/03/2026"
	_, err = ParseDate("expiry_date", &bad)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"expiry_date": "must be a date in YYYY-MM-DD format"}, pkgerrors.As(err).Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest struct {
		Code string `json:"code" validate:"required"`
	}
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"code":"abc","extra":1}`))
	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{}`))
	err = DecodeJSONBody(req, &dest)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"code": "is required"}, pkgerrors.As(err).Details())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest("GET", "/", nil)
	value, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/?force=true&unreadOnly=0&bad=maybe", nil)

	force, err := ParseQueryBool(req, "force")
	require.NoError(t, err)
	assert.True(t, force)

	unread, err := ParseQueryBool(req, "unreadOnly")
	require.NoError(t, err)
	assert.False(t, unread)

	missing, err := ParseQueryBool(req, "missing")
	require.NoError(t, err)
	assert.False(t, missing)

	_, err = ParseQueryBool(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingDocuments(t *testing.T) {
	var dest struct {
		Code string `json:"code"`
	}
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"code":"a"}{"code":"b"}`))
	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"code":`))
	err = DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
