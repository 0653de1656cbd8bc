// Package auth checks API keys against configured bcrypt hashes.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Authenticator struct {
	hashes [][]byte

	log *zap.Logger
}

// New builds an Authenticator. An empty hash list authenticates nobody.
func New(hashes []string, log *zap.Logger) (*Authenticator, error) {

	if log == nil {
		log = zap.NewNop()
	}

	a := &Authenticator{log: log}

	for i, h := range hashes {

		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("api key hash %d is not a bcrypt hash: %w", i, err)
		}

		a.hashes = append(a.hashes, []byte(h))
	}

	return a, nil
}

// Authenticate returns the principal for the key carried by r, read from an
// `Authorization: Bearer` header or the api_key form field.
func (a *Authenticator) Authenticate(r *http.Request) (string, bool) {

	key := bearerToken(r.Header.Get("Authorization"))

	if key == "" {
		key = r.PostFormValue("api_key")
	}

	if key == "" {
		return "", false
	}

	for i, h := range a.hashes {

		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return fmt.Sprintf("api-key-%d", i), true
		}
	}

	a.log.Warn("rejected api key", zap.String("remote_addr", r.RemoteAddr))

	return "", false
}

func bearerToken(header string) string {

	scheme, token, ok := strings.Cut(header, " ")

	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// HashKey produces the value to put in auth.api_key_hashes for key
func HashKey(key string) (string, error) {

	if key == "" {
		return "", fmt.Errorf("api key must not be empty")
	}

	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)

	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}

	return string(h), nil
}
