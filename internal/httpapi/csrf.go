package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// csrfSigner issues stateless tokens bound to an hour bucket. A token is
// accepted during its own hour and the next one.
type csrfSigner struct {
	secret []byte
	now    func() time.Time
}

func newCSRFSigner() *csrfSigner {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("csrf secret: %v", err))
	}
	return &csrfSigner{secret: secret, now: time.Now}
}

func (c *csrfSigner) forBucket(bucket int64) string {
	h := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(h, "%d", bucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *csrfSigner) Token() string {
	return c.forBucket(c.now().UTC().Truncate(time.Hour).Unix())
}

func (c *csrfSigner) Valid(token string) bool {
	if token == "" {
		return false
	}
	current := c.now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(c.forBucket(current))) ||
		hmac.Equal([]byte(token), []byte(c.forBucket(current-3600)))
}

var csrfExemptPaths = map[string]struct{}{
	"/api/v1/auth/login": {},
}

func (a *API) csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if _, exempt := csrfExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}
		if !a.csrf.Valid(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
