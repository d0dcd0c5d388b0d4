package handlers

import (
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
)

type outboxStatusQuery struct {
	EntityType string `form:"entity_type"`
	EntityId   int    `form:"entity_id"`
}

func outboxStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q outboxStatusQuery
		if !bindQuery(c, &q) {
			return
		}
		if q.EntityType == "" || q.EntityId <= 0 {
			badRequest(c, "entity_type and entity_id are required")
			return
		}
		status, err := models.GetOutboxStatus(c.Request.Context(), q.EntityType, q.EntityId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// outboxReprocessHandler re-queues the organization's DEAD and FAILED events.
func outboxReprocessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := models.ReprocessDeadEvents(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": n})
	}
}

func sequenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := models.SequenceKind(c.Param("kind"))
		if !kind.IsValid() {
			badRequest(c, "unknown sequence kind %q", kind)
			return
		}
		last, err := models.PeekSequence(c.Request.Context(), kind)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": kind, "last_value": last})
	}
}
