package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/printdesk/printdesk/internal/api/middleware"
	"github.com/printdesk/printdesk/internal/core"
	"github.com/printdesk/printdesk/internal/db"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	RFID     string `json:"rfid" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Mobile   string `json:"mobile" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ProfileResponse struct {
	Username string             `json:"username"`
	Name     string             `json:"name"`
	Mobile   string             `json:"mobile"`
	Email    string             `json:"email"`
	RFID     string             `json:"rfid"`
	Billing  *db.BillingAccount `json:"billing"`
}

type UserHandler struct {
	ledger *core.Ledger
	auth   *middleware.AuthMiddleware
}

func NewUserHandler(ledger *core.Ledger, auth *middleware.AuthMiddleware) *UserHandler {
	return &UserHandler{ledger: ledger, auth: auth}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	if msg := validateRegistration(c, &req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	user := &db.User{
		Username: req.Username,
		RFID:     req.RFID,
		Name:     req.Name,
		Mobile:   req.Mobile,
		Email:    req.Email,
		Password: string(hashed),
	}
	if err := db.Users.CreateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User created successfully"})
}

func validateRegistration(c *gin.Context, req *RegisterRequest) string {
	if !usernamePattern.MatchString(req.Username) {
		return "Username is not valid"
	}
	if len(req.Password) < 8 {
		return "Password must be at least 8 characters"
	}
	if len(req.Name) < 3 {
		return "Name must be at least 3 characters"
	}
	if len(req.Mobile) < 10 {
		return "Mobile must be at least 10 characters"
	}
	if !strings.Contains(req.Email, "@") {
		return "Email is not valid"
	}

	ctx := c.Request.Context()
	if _, err := db.Users.GetByUsername(ctx, req.Username); !errors.Is(err, sql.ErrNoRows) {
		return "Username already exists"
	}
	if _, err := db.Users.GetByRFID(ctx, req.RFID); !errors.Is(err, sql.ErrNoRows) {
		return "RFID already exists"
	}
	if _, err := db.Users.GetByMobile(ctx, req.Mobile); !errors.Is(err, sql.ErrNoRows) {
		return "Mobile already exists"
	}
	if _, err := db.Users.GetByEmail(ctx, req.Email); !errors.Is(err, sql.ErrNoRows) {
		return "Email already exists"
	}
	return ""
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}

	user, err := db.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := h.auth.GenerateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *UserHandler) Profile(c *gin.Context) {
	username := middleware.Username(c)

	user, err := db.Users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	billing, err := h.ledger.Account(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		Username: user.Username,
		Name:     user.Name,
		Mobile:   user.Mobile,
		Email:    user.Email,
		RFID:     user.RFID,
		Billing:  billing,
	})
}
