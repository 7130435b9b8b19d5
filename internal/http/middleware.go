package httpapp

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alphabot-ai/postboard/internal/auth"
)

// requireAuth rejects the request with 401 unless it carries a valid
// bearer token. On success the subject is available both as
// c.GetString(subjectKey) and through auth.SubjectFrom on the request
// context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "no token provided")
			c.Abort()
			return
		}
		verified, err := s.auth.Authenticate(c.Request.Context(), bearer)
		if err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}
		c.Set(subjectKey, verified.AccountID)
		c.Request = c.Request.WithContext(auth.WithSubject(c.Request.Context(), verified.AccountID))
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// cors answers preflight requests and sets the allow headers. An empty
// AllowedOrigins list allows every origin.
func (s *Server) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, origin := range s.cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			switch {
			case len(allowed) == 0:
				c.Header("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
