package http

import (
	"github.com/gin-gonic/gin"

	"docrag/internal/bootstrap"
	"docrag/internal/transport/http/handler"
	"docrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.MaxUploadBytes()

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	// A nil *BackfillPublisher must not become a non-nil interface.
	var queue handler.BackfillQueue
	if app.Publisher != nil {
		queue = app.Publisher
	}
	documentHandler := handler.NewDocumentHandler(app.Ingest, app.Documents, queue, app.Config.MaxUploadBytes())
	chatHandler := handler.NewChatHandler(app.Answers, app.Retriever)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.OptionalAuthJWT(app.Config.Auth.JWTSecret))

	documents := v1.Group("/documents")
	documents.POST("", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.GET("/:id/debug", documentHandler.Debug)
	documents.POST("/:id/backfill", documentHandler.Backfill)

	v1.POST("/chat", chatHandler.Chat)
	v1.POST("/search", chatHandler.Search)

	return router
}
