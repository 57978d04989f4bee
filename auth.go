package lumen

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// AuthConfig configures HTTP API authentication.
type AuthConfig struct {
	// Enabled enables authentication on HTTP endpoints.
	Enabled bool `yaml:"enabled"`

	// KeyDigests are hex-encoded PBKDF2-SHA256 digests of valid API keys.
	// Plaintext keys never appear in configuration.
	KeyDigests []string `yaml:"key_digests"`

	// Salt is the PBKDF2 salt shared by all digests.
	Salt string `yaml:"salt"`

	// Iterations is the PBKDF2 iteration count. Default: 10000.
	Iterations int `yaml:"iterations"`

	// ExcludePaths are paths that don't require authentication
	// (e.g. /health).
	ExcludePaths []string `yaml:"exclude_paths"`
}

// HashAPIKey derives the hex digest stored in AuthConfig.KeyDigests for a
// plaintext key. Exposed so operators can generate config entries.
func HashAPIKey(key, salt string, iterations int) string {
	if iterations <= 0 {
		iterations = 10000
	}
	return hex.EncodeToString(pbkdf2.Key([]byte(key), []byte(salt), iterations, 32, sha256.New))
}

// authChecker verifies Bearer API keys against configured digests.
type authChecker struct {
	enabled      bool
	digests      [][]byte
	salt         string
	iterations   int
	excludePaths map[string]bool
}

func newAuthChecker(cfg *AuthConfig) *authChecker {
	if cfg == nil || !cfg.Enabled {
		return &authChecker{}
	}
	c := &authChecker{
		enabled:      true,
		salt:         cfg.Salt,
		iterations:   cfg.Iterations,
		excludePaths: make(map[string]bool, len(cfg.ExcludePaths)),
	}
	if c.iterations <= 0 {
		c.iterations = 10000
	}
	for _, p := range cfg.ExcludePaths {
		c.excludePaths[p] = true
	}
	for _, d := range cfg.KeyDigests {
		raw, err := hex.DecodeString(d)
		if err != nil {
			continue
		}
		c.digests = append(c.digests, raw)
	}
	return c
}

// extractAPIKey pulls the key from the Authorization header (Bearer token)
// or the api_key query parameter.
func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("api_key")
}

// allow reports whether the request may proceed.
func (c *authChecker) allow(r *http.Request) bool {
	if !c.enabled || c.excludePaths[r.URL.Path] {
		return true
	}
	key := extractAPIKey(r)
	if key == "" {
		return false
	}
	derived := pbkdf2.Key([]byte(key), []byte(c.salt), c.iterations, 32, sha256.New)
	for _, d := range c.digests {
		if subtle.ConstantTimeCompare(derived, d) == 1 {
			return true
		}
	}
	return false
}

// middleware enforces authentication around a handler.
func (c *authChecker) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
