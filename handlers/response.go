package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrInvalidState), errors.Is(err, utils.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		// details stay in the log
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// idParam reads a positive integer path parameter.
func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid %s", name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "invalid request body: %s", err.Error())
		return false
	}
	return true
}

// bindQuery binds the query string into each of dest.
func bindQuery(c *gin.Context, dest ...any) bool {
	for _, d := range dest {
		if err := c.ShouldBindQuery(d); err != nil {
			badRequest(c, "invalid query: %s", err.Error())
			return false
		}
	}
	return true
}

func pageInput(c *gin.Context) (models.PageInput, bool) {
	var page models.PageInput
	ok := bindQuery(c, &page)
	return page, ok
}
