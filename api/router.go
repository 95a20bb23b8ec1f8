// Package api serves the session-authenticated JSON API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden"
	"github.com/minus-twelve/warden/password"
	"github.com/minus-twelve/warden/types"
)

// Users is the user lookup the API needs.
type Users interface {
	warden.UserRepository
	Count(ctx context.Context) (int, error)
}

type Server struct {
	auth    *warden.Authenticator
	users   Users
	limiter *warden.RateLimiter
	rate    types.RateConfig
	log     logr.Logger
}

// NewServer builds the API. auth may be nil, in which case no route is
// protected and session login is unavailable.
func NewServer(auth *warden.Authenticator, users Users, rate types.RateConfig, limiter *warden.RateLimiter, logger logr.Logger) *Server {
	if limiter == nil {
		limiter = warden.NewRateLimiter(nil)
	}
	return &Server{
		auth:    auth,
		users:   users,
		limiter: limiter,
		rate:    rate,
		log:     logger.WithName("api"),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	// both slash forms are served, so every request reaches the auth guard
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery(), s.accessLog())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowCredentials = false
	corsCfg.AddAllowHeaders("Authorization")

	// preflight requests are answered before authentication
	r.Use(cors.New(corsCfg), warden.AuthMiddleware(s.auth))
	r.NoRoute(notFound)

	v1 := r.Group("/api/v1")
	handle(v1, http.MethodGet, "/status", s.status)
	handle(v1, http.MethodGet, "/stats", s.stats)
	handle(v1, http.MethodGet, "/unauthorized", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	})
	handle(v1, http.MethodGet, "/forbidden", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	})
	handle(v1, http.MethodGet, "/users/:user_id", s.user)

	session := v1.Group("/auth_session")
	handle(session, http.MethodPost, "/login", warden.RateLimitMiddleware(s.limiter, s.rate), s.login)
	handle(session, http.MethodDelete, "/logout", s.logout)

	return r
}

// handle registers path with and without a trailing slash.
func handle(g *gin.RouterGroup, method, path string, handlers ...gin.HandlerFunc) {
	g.Handle(method, path, handlers...)
	g.Handle(method, path+"/", handlers...)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.V(1).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (s *Server) stats(c *gin.Context) {
	n, err := s.users.Count(c.Request.Context())
	if err != nil {
		s.log.Error(err, "count users")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": n})
}

// user serves /users/:user_id, where "me" is the authenticated caller.
func (s *Server) user(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "me" {
		user, ok := warden.CurrentUser(c)
		if !ok {
			notFound(c)
			return
		}
		c.JSON(http.StatusOK, user)
		return
	}

	user, err := s.users.Get(c.Request.Context(), userID)
	if err != nil || user == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email missing"})
		return
	}
	pw := c.PostForm("password")
	if pw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password missing"})
		return
	}

	ctx := c.Request.Context()
	user, err := s.users.SearchByEmail(ctx, email)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no user found for this email"})
		return
	}
	if !password.IsValid(user.HashedPassword, pw) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	if s.auth == nil {
		notFound(c)
		return
	}
	sessionID, err := s.auth.CreateSession(ctx, user.ID)
	switch {
	case errors.Is(err, warden.ErrSessionsUnsupported):
		notFound(c)
		return
	case err != nil:
		s.log.Error(err, "create session", "user_id", user.ID)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.SetCookie(s.auth.CookieName(), sessionID, 0, "/", "", false, true)
	c.JSON(http.StatusOK, user)
}

func (s *Server) logout(c *gin.Context) {
	if s.auth == nil {
		notFound(c)
		return
	}
	destroyed, err := s.auth.DestroySession(c.Request)
	if err != nil || !destroyed {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
