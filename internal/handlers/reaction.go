package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restkit/internal/models"
	"restkit/internal/reactions"
)

type ReactionHandler struct {
	svc *reactions.Service
}

func NewReactionHandler(svc *reactions.Service) *ReactionHandler {
	return &ReactionHandler{svc: svc}
}

func (h *ReactionHandler) Create(c *gin.Context) {
	var reaction models.Reaction
	if err := c.ShouldBindJSON(&reaction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed reaction payload"})
		return
	}

	if rerr := h.svc.Create(CurrentCaller(c), &reaction); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, reaction)
}

// ListForParent lets the owner of a comment see the reactions on it.
func (h *ReactionHandler) ListForParent(c *gin.Context) {
	req, ok := BindShape(c)
	if !ok {
		return
	}

	page, rerr := h.svc.ListForParent(CurrentCaller(c), ParamID(c, "id"), req)
	if rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": page})
}

func (h *ReactionHandler) Delete(c *gin.Context) {
	if rerr := h.svc.Delete(CurrentCaller(c), ParamID(c, "id")); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.Status(http.StatusNoContent)
}
