package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"restkit/internal/middleware"
	"restkit/internal/models"
)

// AuthHandler is the account boundary: it issues the session the caller
// middleware reads. Anything beyond signup/login/logout is out of scope
// for the core.
type AuthHandler struct {
	db *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db}
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil || strings.TrimSpace(creds.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user := models.User{
		Username: strings.TrimSpace(creds.Username),
		Email:    strings.ToLower(strings.TrimSpace(creds.Email)),
	}
	if err := user.SetPassword(creds.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := middleware.SignIn(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var user models.User
	err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(creds.Email))).Take(&user).Error
	if err != nil || !user.CheckPassword(creds.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := middleware.SignIn(c, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := middleware.SignOut(c); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	caller := CurrentCaller(c)
	if !caller.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	var user models.User
	if err := h.db.Take(&user, caller.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such user"})
		return
	}
	c.JSON(http.StatusOK, user)
}
