package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restkit/internal/models"
	"restkit/internal/resource"
	"restkit/internal/utils"
)

type StoryHandler struct {
	svc *resource.Service[models.Story, *models.Story]
}

func NewStoryHandler(svc *resource.Service[models.Story, *models.Story]) *StoryHandler {
	return &StoryHandler{svc: svc}
}

func (h *StoryHandler) Create(c *gin.Context) {
	var story models.Story
	if err := c.ShouldBindJSON(&story); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed story payload"})
		return
	}
	// Stories accept comments unless the author closes them.
	story.CommentsOpen = true

	if rerr := h.svc.Create(CurrentCaller(c), &story); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) Get(c *gin.Context) {
	story, rerr := h.svc.Get(CurrentCaller(c), ParamID(c, "id"))
	if rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, storyView(story))
}

func (h *StoryHandler) List(c *gin.Context) {
	req, ok := BindShape(c)
	if !ok {
		return
	}

	page, rerr := h.svc.List(CurrentCaller(c), req)
	if rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *StoryHandler) Update(c *gin.Context) {
	var story models.Story
	if err := c.ShouldBindJSON(&story); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed story payload"})
		return
	}

	if rerr := h.svc.Update(CurrentCaller(c), ParamID(c, "id"), &story); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) Delete(c *gin.Context) {
	if rerr := h.svc.Delete(CurrentCaller(c), ParamID(c, "id")); rerr != nil {
		RespondError(c, rerr)
		return
	}
	c.Status(http.StatusNoContent)
}

func storyView(story *models.Story) gin.H {
	return gin.H{
		"story":     story,
		"body_html": utils.RenderMarkdown(story.Body),
	}
}
