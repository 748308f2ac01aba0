package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/skillswap/skillswap-api/internal/chat"
	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/handlers"
	"github.com/skillswap/skillswap-api/internal/logger"
	"github.com/skillswap/skillswap-api/internal/middleware"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/realtime"
	"github.com/skillswap/skillswap-api/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Skill{},
		&models.BarterRequest{},
		&models.Message{},
	); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := db.EnsureProfilesView(gdb); err != nil {
		log.Fatal().Err(err).Msg("profiles view failed")
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	bus := store.NewRedisBus(rdb, log)
	st := store.NewGorm(gdb, bus, log)
	svc := chat.NewService(st, log)

	hub := realtime.NewHub(log)
	go hub.Run()

	authH := &handlers.AuthHandler{
		Store:     st,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
		Log:       log,
	}
	skillH := handlers.NewSkillHandler(st, log)
	barterH := handlers.NewBarterHandler(st, svc, log)
	chatH := handlers.NewChatHandler(svc, hub, bus, rdb, cfg.JWTSecret, log)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/skills", skillH.ListPublic)
	api.Get("/skills/categories", skillH.GetCategories)

	// protected (JWT cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", authH.Me)
	protected.Get("/users/:id/profile", authH.Profile)

	protected.Get("/my/skills", skillH.ListMine)
	protected.Post("/skills", skillH.Create)
	protected.Patch("/skills/:id/active", skillH.SetActive)

	protected.Post("/barters", barterH.Propose)
	protected.Get("/barters", barterH.ListMine)
	protected.Patch("/barters/:id/status", barterH.UpdateStatus)

	chatGroup := protected.Group("/chat")
	chatGroup.Post("/conversations", chatH.CreateOrGetConversation)
	chatGroup.Get("/conversations", chatH.GetConversations)
	chatGroup.Get("/conversations/:id/messages", chatH.GetMessages)
	chatGroup.Post("/conversations/:id/messages", chatH.SendMessage)

	// websocket: auth via token query param
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Info().Str("port", cfg.AppPort).Msg("listening")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
