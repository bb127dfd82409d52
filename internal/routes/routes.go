package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaspace/community-server/internal/config"
	"github.com/aaspace/community-server/internal/handlers"
	"github.com/aaspace/community-server/internal/middleware"
	"github.com/aaspace/community-server/internal/repository"
	"github.com/aaspace/community-server/internal/services"
	chatws "github.com/aaspace/community-server/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	registry := chatws.NewRegistry()
	dispatcher := chatws.NewDispatcher(registry)
	chatService := services.NewChatService(conversationRepo, messageRepo, userRepo, dispatcher)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, registry)

	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	conversations := app.Group("/conversations", middleware.AuthRequired(cfg.JWTSecret))
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/messages/mark-as-read", chatHandler.MarkAsRead)

	// The realtime route is deliberately unauthenticated; the address is
	// validated (and the connection rejected) after the upgrade.
	app.Use("/ws", chatHandler.WebSocketUpgrade)
	app.Get("/ws/*", websocket.New(chatHandler.HandleWebSocket))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
