package router

import (
	"restkit/internal/handlers"
	"restkit/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers carries the constructed handler set into route registration.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Story    *handlers.StoryHandler
	Comment  *handlers.CommentHandler
	Reaction *handlers.ReactionHandler
	WS       *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")

	// Account boundary
	api.POST("/signup", h.Auth.Signup)
	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)
	api.GET("/me", h.Auth.Me)

	// Public reads
	api.GET("/stories", h.Story.List)
	api.GET("/stories/:id", h.Story.Get)
	api.GET("/comments/story/:id", h.Comment.ListForStory)
	api.GET("/comments/comment/:id", h.Comment.ListForComment)

	// Writes require a signed-in caller
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/stories", h.Story.Create)
		authorized.PUT("/stories/:id", h.Story.Update)
		authorized.DELETE("/stories/:id", h.Story.Delete)

		authorized.POST("/comments", h.Comment.Create)
		authorized.PUT("/comments/:id", h.Comment.Update)
		authorized.DELETE("/comments/:id", h.Comment.Delete)

		authorized.POST("/reactions", h.Reaction.Create)
		authorized.GET("/reactions/parent/:id", h.Reaction.ListForParent)
		authorized.DELETE("/reactions/:id", h.Reaction.Delete)
	}

	// Realtime comment feed per story
	r.GET("/ws/comments/:id", h.WS.CommentsFeed)
}
