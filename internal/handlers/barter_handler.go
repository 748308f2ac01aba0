package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-api/internal/chat"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
)

type BarterHandler struct {
	Store *store.Gorm
	Svc   *chat.Service
	Log   zerolog.Logger
}

func NewBarterHandler(st *store.Gorm, svc *chat.Service, log zerolog.Logger) *BarterHandler {
	return &BarterHandler{Store: st, Svc: svc, Log: log}
}

type proposeReq struct {
	RequestedSkillID string `json:"requested_skill_id"`
	OfferedSkillID   string `json:"offered_skill_id"`
	Message          string `json:"message"`
}

// Propose creates a barter request: offer one of my skills against
// someone else's. The new row doubles as the conversation container.
func (h *BarterHandler) Propose(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req proposeReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	requestedID, err := uuid.Parse(req.RequestedSkillID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid requested skill ID"})
	}
	offeredID, err := uuid.Parse(req.OfferedSkillID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid offered skill ID"})
	}

	requested, err := h.Store.SkillByID(c.Context(), requestedID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch skill"})
	}
	if requested == nil || !requested.IsActive {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Requested skill not found"})
	}
	if requested.UserID == userUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Cannot request your own skill"})
	}

	offered, err := h.Store.SkillByID(c.Context(), offeredID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch skill"})
	}
	if offered == nil || offered.UserID != userUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Offered skill must be one of your own"})
	}

	barter := &models.BarterRequest{
		RequesterID:      userUUID,
		RequestedSkillID: requestedID,
		OfferedSkillID:   offeredID,
		Status:           models.BarterPending,
		Message:          strings.TrimSpace(req.Message),
	}
	if err := h.Store.CreateBarterRequest(c.Context(), barter); err != nil {
		h.Log.Error().Err(err).Msg("barter create failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create barter request"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": barter})
}

// ListMine returns every barter request the user participates in.
func (h *BarterHandler) ListMine(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	reqs, err := h.Store.BarterRequestsForUser(c.Context(), userUUID)
	if err != nil {
		h.Log.Error().Err(err).Msg("barter listing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch barter requests"})
	}
	return c.JSON(fiber.Map{"success": true, "data": reqs, "count": len(reqs)})
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus stores a new status for the request. Statuses are an
// enumerated set; transitions between them are not enforced. The update
// event invalidates the conversation lists of live sessions.
func (h *BarterHandler) UpdateStatus(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	requestID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request ID"})
	}

	var req statusReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	status := models.BarterStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !models.ValidBarterStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid status"})
	}

	requester, owner, err := h.Svc.Participants(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Barter request not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch barter request"})
	}
	if userUUID != requester && userUUID != owner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	if err := h.Store.UpdateBarterStatus(c.Context(), requestID, status); err != nil {
		h.Log.Error().Err(err).Msg("barter status update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to update status"})
	}
	return c.JSON(fiber.Map{"success": true})
}
