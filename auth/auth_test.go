package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, key string) string {

	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)

	require.NoError(t, err)

	return string(h)
}

func TestBearerHeader(t *testing.T) {

	a, err := New([]string{hash(t, "first"), hash(t, "second")}, zaptest.NewLogger(t))

	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api", nil)

	r.Header.Set("Authorization", "Bearer second")

	principal, ok := a.Authenticate(r)

	assert.True(t, ok)

	assert.Equal(t, "api-key-1", principal)

	r.Header.Set("Authorization", "bearer wrong")

	_, ok = a.Authenticate(r)

	assert.False(t, ok)
}

func TestFormField(t *testing.T) {

	a, err := New([]string{hash(t, "k")}, zaptest.NewLogger(t))

	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(url.Values{"api_key": {"k"}}.Encode()))

	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, ok := a.Authenticate(r)

	assert.True(t, ok)
}

func TestNoKeysAuthenticatesNobody(t *testing.T) {

	a, err := New(nil, nil)

	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api", nil)

	r.Header.Set("Authorization", "Bearer anything")

	_, ok := a.Authenticate(r)

	assert.False(t, ok)

	_, ok = a.Authenticate(httptest.NewRequest(http.MethodPost, "/api", nil))

	assert.False(t, ok)
}

func TestRejectsPlaintextConfig(t *testing.T) {

	_, err := New([]string{"not-a-hash"}, nil)

	assert.Error(t, err)
}

func TestHashKey(t *testing.T) {

	h, err := HashKey("s3cret")

	require.NoError(t, err)

	a, err := New([]string{h}, nil)

	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api", nil)

	r.Header.Set("Authorization", "Bearer s3cret")

	_, ok := a.Authenticate(r)

	assert.True(t, ok)

	_, err = HashKey("")

	assert.Error(t, err)
}
