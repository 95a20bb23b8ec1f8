package userservice

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const sessionCookie = "session_id"

// NewRouter wires the user service routes.
func NewRouter(auth *Auth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handlers{auth: auth}
	r.GET("/", h.home)
	r.POST("/users", h.register)
	r.POST("/sessions", h.login)
	r.DELETE("/sessions", h.logout)
	r.GET("/profile", h.profile)
	r.POST("/reset_password", h.resetToken)
	r.PUT("/reset_password", h.updatePassword)

	return r
}

type handlers struct {
	auth *Auth
}

func (h *handlers) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Bienvenue"})
}

func (h *handlers) register(c *gin.Context) {
	email := c.PostForm("email")
	pw := c.PostForm("password")

	if _, err := h.auth.RegisterUser(c.Request.Context(), email, pw); err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email already registered"})
			return
		}
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "message": "user created"})
}

func (h *handlers) login(c *gin.Context) {
	email := c.PostForm("email")
	pw := c.PostForm("password")
	ctx := c.Request.Context()

	if !h.auth.ValidLogin(ctx, email, pw) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	sessionID, err := h.auth.CreateSession(ctx, email)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.SetCookie(sessionCookie, sessionID, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"email": email, "message": "logged in"})
}

func (h *handlers) logout(c *gin.Context) {
	sessionID, _ := c.Cookie(sessionCookie)
	ctx := c.Request.Context()

	user, ok := h.auth.GetUserFromSessionID(ctx, sessionID)
	if !ok {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if err := h.auth.DestroySession(ctx, user.ID); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) profile(c *gin.Context) {
	sessionID, _ := c.Cookie(sessionCookie)

	user, ok := h.auth.GetUserFromSessionID(c.Request.Context(), sessionID)
	if !ok {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": user.Email})
}

func (h *handlers) resetToken(c *gin.Context) {
	email := c.PostForm("email")

	token, err := h.auth.GetResetPasswordToken(c.Request.Context(), email)
	if err != nil {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "reset_token": token})
}

func (h *handlers) updatePassword(c *gin.Context) {
	email := c.PostForm("email")
	token := c.PostForm("reset_token")
	pw := c.PostForm("new_password")

	if err := h.auth.UpdatePassword(c.Request.Context(), token, pw); err != nil {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "message": "Password updated"})
}
