package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"restkit/internal/comments"
	"restkit/internal/models"
	"restkit/internal/utils"
)

// Comment list responses are cached briefly per path+query; writes rely on
// the short TTL rather than invalidation, like the upstream read caches.
const commentCacheTTL = 10 * time.Second

type CommentHandler struct {
	svc *comments.Service
}

func NewCommentHandler(svc *comments.Service) *CommentHandler {
	return &CommentHandler{svc: svc}
}

func (h *CommentHandler) Create(c *gin.Context) {
	var comment models.Comment
	if err := c.ShouldBindJSON(&comment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed comment payload"})
		return
	}

	view, rerr := h.svc.Create(CurrentCaller(c), &comment)
	if rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListForStory serves the top-level comments of a story, children
// included one level deep.
func (h *CommentHandler) ListForStory(c *gin.Context) {
	h.listCached(c, "story", func() ([]comments.View, bool) {
		req, ok := BindShape(c)
		if !ok {
			return nil, false
		}
		views, rerr := h.svc.ListForParent(CurrentCaller(c), ParamID(c, "id"), req)
		if rerr != nil {
			RespondError(c, rerr)
			return nil, false
		}
		return views, true
	})
}

// ListForComment serves the direct replies of a comment, never deeper.
func (h *CommentHandler) ListForComment(c *gin.Context) {
	h.listCached(c, "comment", func() ([]comments.View, bool) {
		req, ok := BindShape(c)
		if !ok {
			return nil, false
		}
		views, rerr := h.svc.ListReplies(CurrentCaller(c), ParamID(c, "id"), req)
		if rerr != nil {
			RespondError(c, rerr)
			return nil, false
		}
		return views, true
	})
}

func (h *CommentHandler) listCached(c *gin.Context, kind string, load func() ([]comments.View, bool)) {
	// Cache only the anonymous variant: authenticated projections carry
	// the caller's own reactions and must not be shared.
	caller := CurrentCaller(c)
	key := fmt.Sprintf("comments:%s:%s?%s", kind, c.Param("id"), c.Request.URL.RawQuery)

	if !caller.Authenticated {
		if cached := utils.GetCache().Get(key); cached != nil {
			if views, ok := cached.([]comments.View); ok {
				c.JSON(http.StatusOK, gin.H{"data": views})
				return
			}
		}
	}

	views, ok := load()
	if !ok {
		return
	}

	if !caller.Authenticated {
		utils.GetCache().Set(key, views, commentCacheTTL)
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (h *CommentHandler) Update(c *gin.Context) {
	var comment models.Comment
	if err := c.ShouldBindJSON(&comment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed comment payload"})
		return
	}

	if rerr := h.svc.Update(CurrentCaller(c), ParamID(c, "id"), &comment); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if rerr := h.svc.Delete(CurrentCaller(c), ParamID(c, "id")); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.Status(http.StatusNoContent)
}
