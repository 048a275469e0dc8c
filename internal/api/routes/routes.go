package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prepdeck/prepdeck/internal/api/handlers"
	"github.com/prepdeck/prepdeck/internal/api/middleware"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	Media     *handlers.MediaHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/interview/setup", d.Interview.Setup)
	auth.GET("/interviews", d.Interview.List)
	auth.GET("/interview/history", d.Interview.History)
	auth.GET("/interview/:session_id", d.Interview.Get)
	auth.GET("/interview/:session_id/responses", d.Interview.SessionResponses)
	auth.POST("/interview/:session_id/answer", d.Interview.Answer)
	auth.POST("/interview/:session_id/advance", d.Interview.Advance)
	auth.POST("/interview/:session_id/complete", d.Interview.Complete)
	auth.POST("/interview/:session_id/reset", d.Interview.Reset)
	auth.GET("/interview/:session_id/report", d.Interview.Report)

	auth.POST("/media/speech", d.Media.Speech)
	auth.POST("/media/avatar", d.Media.Avatar)

	// WebSocket
	auth.GET("/ws/interview/:session_id", d.WS.RecordingWS)
}
