package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
)

type SkillHandler struct {
	Store *store.Gorm
	Log   zerolog.Logger
}

func NewSkillHandler(st *store.Gorm, log zerolog.Logger) *SkillHandler {
	return &SkillHandler{Store: st, Log: log}
}

// ListPublic returns active skills, optionally filtered by category.
func (h *SkillHandler) ListPublic(c *fiber.Ctx) error {
	skills, err := h.Store.Skills(c.Context(), c.Query("category"))
	if err != nil {
		h.Log.Error().Err(err).Msg("skill listing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch skills"})
	}
	return c.JSON(fiber.Map{"success": true, "data": skills, "count": len(skills)})
}

func (h *SkillHandler) GetCategories(c *fiber.Ctx) error {
	cats, err := h.Store.SkillCategories(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch categories"})
	}
	return c.JSON(fiber.Map{"success": true, "data": cats})
}

func (h *SkillHandler) ListMine(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	skills, err := h.Store.SkillsByOwner(c.Context(), userUUID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch skills"})
	}
	return c.JSON(fiber.Map{"success": true, "data": skills})
}

type createSkillReq struct {
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Tags     datatypes.JSON `json:"tags"`
}

func (h *SkillHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req createSkillReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	errs := FieldErrors{}
	if strings.TrimSpace(req.Title) == "" {
		errs.Add("title", "Title is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		errs.Add("category", "Category is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	skill := &models.Skill{
		UserID:   userUUID,
		Title:    strings.TrimSpace(req.Title),
		Category: strings.ToLower(strings.TrimSpace(req.Category)),
		Tags:     req.Tags,
		IsActive: true,
	}
	if err := h.Store.CreateSkill(c.Context(), skill); err != nil {
		h.Log.Error().Err(err).Msg("skill create failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create skill"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": skill})
}

type setActiveReq struct {
	IsActive bool `json:"is_active"`
}

// SetActive toggles a skill's activity flag. Only the owner may do this.
func (h *SkillHandler) SetActive(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	skillID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid skill ID"})
	}

	var req setActiveReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	skill, err := h.Store.SkillByID(c.Context(), skillID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch skill"})
	}
	if skill == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Skill not found"})
	}
	if skill.UserID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	if err := h.Store.SetSkillActive(c.Context(), skillID, req.IsActive); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to update skill"})
	}
	return c.JSON(fiber.Map{"success": true})
}
