package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PubSubMessage is the push subscription envelope.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// pushAuthorized checks the shared push token. Production never runs without one.
func pushAuthorized(expected, got string) bool {
	if expected == "" {
		return !config.IsProduction()
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// pubSubHandler consumes pushed outbox events. 2xx acks; anything else makes
// Pub/Sub redeliver, so malformed messages are acked and dropped.
func pubSubHandler() gin.HandlerFunc {
	pushToken := os.Getenv("PUBSUB_PUSH_TOKEN")

	return func(c *gin.Context) {
		logger := config.GetLogger()
		if !pushAuthorized(pushToken, c.Query("token")) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "handlers", "pubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var envelope PubSubMessage
		// []byte fields are base64-decoded by encoding/json
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "handlers", "pubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg config.EventMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			config.LogError(logger, "handlers", "pubSubHandler", "Unmarshal event", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		fields := logrus.Fields{
			"field":           "pubSubHandler",
			"organization_id": msg.OrganizationId,
			"entity_type":     msg.EntityType,
			"entity_id":       msg.EntityId,
			"event_id":        msg.ID,
			"message_id":      envelope.Message.ID,
		}

		// Best effort: serialize one organization's events. Idempotency keys
		// keep processing correct without it.
		lock, err := config.ObtainRedisLock(c.Request.Context(), "lock:events:"+msg.OrganizationId, 30*time.Second, 0, 0)
		if err != nil {
			if !errors.Is(err, redislock.ErrNotObtained) {
				logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without it: " + err.Error())
			}
			lock = nil
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(fields).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		if err := workflow.ProcessEventMessage(c.Request.Context(), logger, msg); err != nil {
			if errors.Is(err, workflow.ErrInvalidEventMessage) {
				config.LogError(logger, "handlers", "pubSubHandler", "invalid event", msg, err)
				c.Status(http.StatusNoContent)
				return
			}
			logger.WithFields(fields).Error("event processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
