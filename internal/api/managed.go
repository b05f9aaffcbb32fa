package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkaraki/herfa/internal/middleware"
	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

// ManagedHandler serves the managed-relationship ledger. Every operation
// exists in two directions: a client managing specialists and a
// specialist managing clients. Ownership checks ride inside the store's
// single-statement mutations, so a missing link and someone else's link
// are indistinguishable to the caller.
type ManagedHandler struct {
	users         repository.UserRepository
	relationships repository.RelationshipRepository
	logger        *zap.Logger
}

func NewManagedHandler(users repository.UserRepository, relationships repository.RelationshipRepository, logger *zap.Logger) *ManagedHandler {
	return &ManagedHandler{users: users, relationships: relationships, logger: logger}
}

type addSpecialistRequest struct {
	SpecialistID string `json:"specialistId" binding:"required"`
}

type addClientRequest struct {
	ClientID string `json:"clientId" binding:"required"`
}

// AddSpecialist handles POST /api/managed/specialists — a client
// bookmarks a specialist.
func (h *ManagedHandler) AddSpecialist(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleClient {
		fail(c, http.StatusForbidden, "Only clients can add managed specialists")
		return
	}

	var req addSpecialistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "specialistId is required")
		return
	}
	specialistID, err := uuid.Parse(req.SpecialistID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid specialist ID format")
		return
	}

	specialist, err := h.users.GetByID(c.Request.Context(), specialistID)
	if err != nil {
		h.logger.Error("failed to load specialist", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to add specialist")
		return
	}
	if specialist == nil || specialist.Role != models.RoleSpecialist {
		fail(c, http.StatusNotFound, "Specialist not found or invalid role")
		return
	}

	rel, err := h.relationships.Create(c.Request.Context(), user.ID, specialistID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fail(c, http.StatusConflict, "Specialist already in your managed list")
			return
		}
		h.logger.Error("failed to create relationship", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to add specialist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"specialist": models.ManagedContact{
			PublicUser:     specialist.Public(),
			RelationshipID: rel.ID,
			IsDone:         rel.IsDone,
			DateAdded:      rel.DateAdded,
		},
	})
}

// AddClient handles POST /api/managed/clients — a specialist bookmarks a
// client.
func (h *ManagedHandler) AddClient(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleSpecialist {
		fail(c, http.StatusForbidden, "Only specialists can add managed clients")
		return
	}

	var req addClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "clientId is required")
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid client ID format")
		return
	}

	client, err := h.users.GetByID(c.Request.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to load client", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to add client")
		return
	}
	if client == nil || client.Role != models.RoleClient {
		fail(c, http.StatusNotFound, "Client not found or invalid role")
		return
	}

	rel, err := h.relationships.Create(c.Request.Context(), clientID, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fail(c, http.StatusConflict, "Client already in your managed list")
			return
		}
		h.logger.Error("failed to create relationship", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to add client")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"client": models.ManagedContact{
			PublicUser:     client.Public(),
			RelationshipID: rel.ID,
			IsDone:         rel.IsDone,
			DateAdded:      rel.DateAdded,
		},
	})
}

// ListSpecialists handles GET /api/managed/specialists
func (h *ManagedHandler) ListSpecialists(c *gin.Context) {
	specialists, err := h.relationships.ListSpecialistsForClient(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list managed specialists", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch managed specialists")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"specialists": specialists,
		"count":       len(specialists),
	})
}

// ListClients handles GET /api/managed/clients
func (h *ManagedHandler) ListClients(c *gin.Context) {
	clients, err := h.relationships.ListClientsForSpecialist(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list managed clients", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch managed clients")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"clients": clients,
		"count":   len(clients),
	})
}

type updateStatusRequest struct {
	IsDone *bool `json:"isDone" binding:"required"`
}

// UpdateSpecialistStatus handles
// PATCH /api/managed/relationships/specialist/:id/status — the client
// side of a link flips its completion flag.
func (h *ManagedHandler) UpdateSpecialistStatus(c *gin.Context) {
	h.updateStatus(c, models.RoleClient)
}

// UpdateClientStatus handles
// PATCH /api/managed/relationships/client/:id/status — the specialist
// side of a link flips its completion flag.
func (h *ManagedHandler) UpdateClientStatus(c *gin.Context) {
	h.updateStatus(c, models.RoleSpecialist)
}

func (h *ManagedHandler) updateStatus(c *gin.Context, side models.Role) {
	relationshipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid relationship ID format")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, http.StatusBadRequest, []string{"isDone must be a boolean"})
		return
	}

	ok, err := h.relationships.SetDone(c.Request.Context(), relationshipID, middleware.GetUserID(c), side, *req.IsDone)
	if err != nil {
		h.logger.Error("failed to update relationship status", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Update failed")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "Relationship not found or unauthorized")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"isDone":  *req.IsDone,
	})
}

// RemoveSpecialist handles DELETE /api/managed/specialists/:id
func (h *ManagedHandler) RemoveSpecialist(c *gin.Context) {
	h.remove(c, models.RoleClient, "Specialist removed from managed list")
}

// RemoveClient handles DELETE /api/managed/clients/:id
func (h *ManagedHandler) RemoveClient(c *gin.Context) {
	h.remove(c, models.RoleSpecialist, "Client removed from managed list")
}

func (h *ManagedHandler) remove(c *gin.Context, side models.Role, successMessage string) {
	relationshipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid relationship ID format")
		return
	}

	ok, err := h.relationships.Delete(c.Request.Context(), relationshipID, middleware.GetUserID(c), side)
	if err != nil {
		h.logger.Error("failed to delete relationship", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to remove relationship")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "Relationship not found or unauthorized")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        successMessage,
		"relationshipId": relationshipID,
	})
}
