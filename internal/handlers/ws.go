package handlers

import (
	"github.com/gin-gonic/gin"

	"restkit/internal/broadcast"
	"restkit/internal/comments"
)

type WSHandler struct {
	hub *broadcast.Hub
}

func NewWSHandler(hub *broadcast.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// CommentsFeed subscribes the connection to new-comment broadcasts for one
// story.
func (h *WSHandler) CommentsFeed(c *gin.Context) {
	group := comments.Group(ParamID(c, "id"))
	if err := h.hub.Join(group, c.Writer, c.Request); err != nil {
		// Upgrade failures already wrote a response.
		return
	}
}
