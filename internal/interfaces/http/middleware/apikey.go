package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware guards operator routes. The configured key is either the
// plain secret or its bcrypt hash ("$2a$...", "$2b$...", "$2y$...").
type APIKeyMiddleware struct {
	key    []byte
	hashed bool
	logger logger.Interface

	// digest of the last key that passed bcrypt, so steady traffic skips the KDF
	mu       sync.RWMutex
	verified [sha256.Size]byte
	hasHit   bool
}

func NewAPIKeyMiddleware(key string, log logger.Interface) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		key:    []byte(key),
		hashed: isBcryptHash(key),
		logger: log,
	}
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// RequireAPIKey rejects requests whose X-API-Key does not match. An empty
// configured key rejects everything.
func (m *APIKeyMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(APIKeyHeader)
		if provided == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing API key")
			c.Abort()
			return
		}
		if !m.matches(provided) {
			m.logger.Warnw("rejected request with invalid API key",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"key", utils.MaskSecret(provided),
			)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *APIKeyMiddleware) matches(provided string) bool {
	if len(m.key) == 0 {
		return false
	}
	if !m.hashed {
		return subtle.ConstantTimeCompare([]byte(provided), m.key) == 1
	}

	digest := sha256.Sum256([]byte(provided))
	m.mu.RLock()
	hit := m.hasHit && subtle.ConstantTimeCompare(digest[:], m.verified[:]) == 1
	m.mu.RUnlock()
	if hit {
		return true
	}

	if bcrypt.CompareHashAndPassword(m.key, []byte(provided)) != nil {
		return false
	}
	m.mu.Lock()
	m.verified = digest
	m.hasHit = true
	m.mu.Unlock()
	return true
}
