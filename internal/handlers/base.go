package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restkit/internal/middleware"
	"restkit/internal/resource"
	"restkit/internal/shape"
	"restkit/internal/utils"
)

// CurrentCaller returns the caller identity the session middleware loaded,
// or the anonymous caller.
func CurrentCaller(c *gin.Context) resource.Caller {
	if v, ok := c.Get(middleware.CallerKey); ok {
		if caller, ok := v.(resource.Caller); ok {
			return caller
		}
	}
	return resource.Anonymous
}

// RespondError maps the resource error taxonomy onto HTTP statuses. Fatal
// outcomes never leak internal detail.
func RespondError(c *gin.Context, err *resource.Error) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case resource.KindBadRequest:
		status = http.StatusBadRequest
	case resource.KindForbidden:
		status = http.StatusForbidden
	case resource.KindNotFound:
		status = http.StatusNotFound
	case resource.KindConflict:
		status = http.StatusConflict
	case resource.KindGone:
		status = http.StatusGone
	}
	c.JSON(status, gin.H{"error": err.Reason})
}

// BindShape binds the filter/sort/page/size query parameters.
func BindShape(c *gin.Context) (shape.Request, bool) {
	var req shape.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad shaping parameters"})
		return req, false
	}
	return req, true
}

// ParamID parses a numeric path parameter; 0 means absent or malformed.
func ParamID(c *gin.Context, name string) uint {
	return uint(utils.StringToInt(c.Param(name)))
}
