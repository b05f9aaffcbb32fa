package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hkaraki/herfa/internal/middleware"
	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

// UserHandler serves discovery listings and profile updates.
type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// ListSpecialists handles GET /api/users/specialists
// Optional query filters: governorate, district, specialty, isAvailable.
func (h *UserHandler) ListSpecialists(c *gin.Context) {
	filter := repository.SpecialistFilter{
		Governorate: c.Query("governorate"),
		District:    c.Query("district"),
		Specialty:   c.Query("specialty"),
	}
	if raw := c.Query("isAvailable"); raw != "" {
		avail, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "isAvailable must be true or false")
			return
		}
		filter.IsAvailable = &avail
	}

	specialists, err := h.users.ListSpecialists(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list specialists", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch specialists")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"specialists": specialists,
		"count":       len(specialists),
	})
}

// ListClients handles GET /api/users/clients
// Optional query filters: governorate, district, specialty. The specialty
// filter matches clients that still need that trade.
func (h *UserHandler) ListClients(c *gin.Context) {
	filter := repository.ClientFilter{
		Governorate:    c.Query("governorate"),
		District:       c.Query("district"),
		WantsSpecialty: c.Query("specialty"),
	}

	clients, err := h.users.ListClients(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list clients", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch clients")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"clients": clients,
		"count":   len(clients),
	})
}

type updateAvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

// UpdateAvailability handles PUT /api/users/availability
func (h *UserHandler) UpdateAvailability(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleSpecialist {
		fail(c, http.StatusForbidden, "Only specialists can update availability")
		return
	}

	var req updateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, http.StatusBadRequest, []string{"isAvailable must be a boolean"})
		return
	}

	ok, err := h.users.UpdateAvailability(c.Request.Context(), user.ID, *req.IsAvailable)
	if err != nil {
		h.logger.Error("failed to update availability", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update availability")
		return
	}
	if !ok {
		// The account vanished between authentication and the update.
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"isAvailable": *req.IsAvailable,
	})
}

type updateNeededSpecialistsRequest struct {
	NeededSpecialists []models.NeededSpecialist `json:"neededSpecialists" binding:"required"`
}

// UpdateNeededSpecialists handles PATCH /api/users/needed-specialists
// The whole list is replaced; there is no partial merge.
func (h *UserHandler) UpdateNeededSpecialists(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleClient {
		fail(c, http.StatusForbidden, "Only clients can update needed specialists")
		return
	}

	var req updateNeededSpecialistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, http.StatusBadRequest, []string{"neededSpecialists must be a list of {name, isNeeded} entries"})
		return
	}

	var errs []string
	for _, entry := range req.NeededSpecialists {
		if !models.ValidSpecialty(entry.Name) {
			errs = append(errs, fmt.Sprintf("invalid specialty %q", entry.Name))
		}
	}
	if len(errs) > 0 {
		failValidation(c, http.StatusBadRequest, errs)
		return
	}

	ok, err := h.users.UpdateNeededSpecialists(c.Request.Context(), user.ID, req.NeededSpecialists)
	if err != nil {
		h.logger.Error("failed to update needed specialists", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update needed specialists")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"neededSpecialists": req.NeededSpecialists,
	})
}
