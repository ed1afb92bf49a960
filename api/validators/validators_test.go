package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
)

type cancelBody struct {
	Reason string `json:"reason" validate:"required,min=10"`
}

func TestDecodeJSONBodyReportsFieldMessages(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"short"}`))
	var body cancelBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"reason": "must be at least 10 characters"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"long enough reason","extra":1}`))
	var body cancelBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&types=credit_pending,%20release&from=nope", nil)

	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	assert.Error(t, err)

	assert.Equal(t, []string{"CREDIT_PENDING", "RELEASE"}, ParseQueryList(req, "types"))

	_, err = ParseQueryTime(req, "from")
	assert.Error(t, err)

	missing, err := ParseQueryTime(req, "to")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	assert.Equal(t, "héllo", SanitizeString("héllo wörld", 5))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline\x00 two\t", 0))
}
