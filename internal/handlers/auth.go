package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/skillswap-api/internal/middleware"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/store"
	"github.com/skillswap/skillswap-api/internal/utils"
)

type AuthHandler struct {
	Store     *store.Gorm
	JWTSecret string
	Expires   int
	Log       zerolog.Logger
}

type RegisterReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	name := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if name == "" {
		errs.Add("full_name", "Name is required")
	}
	if email == "" {
		errs.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "Invalid email format")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	} else if len(password) < 6 {
		errs.Add("password", "Password must be at least 6 characters")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	existing, err := h.Store.UserByEmail(c.Context(), email)
	if err != nil {
		h.Log.Error().Err(err).Msg("register: email lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Registration failed"})
	}
	if existing != nil {
		errs.Add("email", "Email is already registered")
		return validationFail(c, errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Registration failed"})
	}

	user := &models.User{
		FullName: name,
		Email:    email,
		Password: string(hash),
		Bio:      strings.TrimSpace(req.Bio),
		Location: strings.TrimSpace(req.Location),
	}
	if err := h.Store.CreateUser(c.Context(), user); err != nil {
		h.Log.Error().Err(err).Msg("register: create user failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Registration failed"})
	}

	return h.issueSession(c, user, fiber.StatusCreated)
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.Store.UserByEmail(c.Context(), email)
	if err != nil {
		h.Log.Error().Err(err).Msg("login: lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Login failed"})
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid email or password"})
	}

	return h.issueSession(c, user, fiber.StatusOK)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	user, err := h.Store.UserByID(c.Context(), userUUID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to load user"})
	}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "User not found"})
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// Profile returns another user's public projection; the raw user row
// (email included) is never exposed here.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid user ID"})
	}

	profile, err := h.Store.ProfileByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to load profile"})
	}
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Profile not found"})
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

func (h *AuthHandler) issueSession(c *fiber.Ctx, user *models.User, status int) error {
	token, err := utils.SignJWT(h.JWTSecret, user.ID.String(), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Session failed"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Expires:  time.Now().Add(time.Duration(h.Expires) * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
		},
	})
}
