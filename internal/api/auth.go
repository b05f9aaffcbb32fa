package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkaraki/herfa/internal/auth"
	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

// AuthHandler serves the public endpoints: register, login, logout and
// token verification. Everything else sits behind the auth middleware.
type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type registerRequest struct {
	Fullname          string                    `json:"fullname" binding:"required"`
	Password          string                    `json:"password" binding:"required,min=6"`
	Role              models.Role               `json:"role" binding:"required"`
	Governorate       string                    `json:"governorate" binding:"omitempty,governorate"`
	District          string                    `json:"district"`
	Specialty         string                    `json:"specialty" binding:"omitempty,specialty"`
	IsAvailable       *bool                     `json:"isAvailable"`
	NeededSpecialists []models.NeededSpecialist `json:"neededSpecialists"`
}

type loginRequest struct {
	Fullname string `json:"fullname" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// validate applies the role-conditional rules binding tags can't express:
// location is required for clients and specialists and the district must
// belong to the governorate; specialists need a specialty; a client's
// needed list may only contain catalog specialties.
func (r *registerRequest) validate() []string {
	var errs []string

	if !r.Role.Valid() {
		return []string{fmt.Sprintf("invalid role %q, must be one of client, specialist, admin", r.Role)}
	}

	if r.Role == models.RoleClient || r.Role == models.RoleSpecialist {
		if r.Governorate == "" {
			errs = append(errs, "governorate is required")
		}
		if r.District == "" {
			errs = append(errs, "district is required")
		} else if r.Governorate != "" && !models.ValidDistrict(r.Governorate, r.District) {
			errs = append(errs, fmt.Sprintf("invalid district %q for governorate %q", r.District, r.Governorate))
		}
	}

	if r.Role == models.RoleSpecialist && r.Specialty == "" {
		errs = append(errs, "specialty is required for specialists")
	}

	if r.Role == models.RoleClient {
		for _, entry := range r.NeededSpecialists {
			if !models.ValidSpecialty(entry.Name) {
				errs = append(errs, fmt.Sprintf("invalid specialty %q in neededSpecialists", entry.Name))
			}
		}
	}

	return errs
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, http.StatusBadRequest, []string{err.Error()})
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		failValidation(c, http.StatusBadRequest, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := &models.User{
		Fullname:     req.Fullname,
		PasswordHash: string(hash),
		Role:         req.Role,
		Governorate:  req.Governorate,
		District:     req.District,
	}
	switch req.Role {
	case models.RoleSpecialist:
		// Newly registered specialists are available unless they say otherwise.
		isAvailable := true
		if req.IsAvailable != nil {
			isAvailable = *req.IsAvailable
		}
		user.Specialist = &models.SpecialistProfile{
			Specialty:   req.Specialty,
			IsAvailable: isAvailable,
		}
	case models.RoleClient:
		needed := req.NeededSpecialists
		if needed == nil {
			needed = []models.NeededSpecialist{}
		}
		user.Client = &models.ClientProfile{NeededSpecialists: needed}
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fail(c, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Fullname and password are required")
		return
	}

	user, err := h.users.GetByFullname(c.Request.Context(), req.Fullname)
	if err != nil {
		h.logger.Error("failed to look up user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	// One generic message for unknown user and wrong password; the
	// response must not reveal which identifiers are registered.
	if user == nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	pub := user.Public()
	// On login a client only sees the entries still marked as needed.
	if user.Client != nil {
		active := make([]models.NeededSpecialist, 0, len(pub.NeededSpecialists))
		for _, entry := range pub.NeededSpecialists {
			if entry.IsNeeded {
				active = append(active, entry)
			}
		}
		pub.NeededSpecialists = active
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    pub,
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless; there is no
// server-side revocation store, so this is an acknowledgement only.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Verify handles GET /api/auth/verify. It is a public route that does its
// own token parsing so it can distinguish expiry from malformation in the
// message (both are still 401).
func (h *AuthHandler) Verify(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		fail(c, http.StatusUnauthorized, "No token provided")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		fail(c, http.StatusUnauthorized, "No token provided")
		return
	}

	claims, err := auth.ParseToken(parts[1], h.jwtSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			fail(c, http.StatusUnauthorized, "Token expired")
			return
		}
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("failed to load user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Token verification failed")
		return
	}
	if user == nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user.Public(),
	})
}
