package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderActorId       = "X-Actor-Id"
	HeaderCorrelationId = "X-Correlation-Id"
)

// SessionMiddleware puts the caller's actor id and a correlation id on the request context.
// Authentication happens upstream; the actor id is trusted as given.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		cid := strings.TrimSpace(c.GetHeader(HeaderCorrelationId))
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
		c.Header(HeaderCorrelationId, cid)

		if raw := strings.TrimSpace(c.GetHeader(HeaderActorId)); raw != "" {
			actorId, err := strconv.Atoi(raw)
			if err != nil || actorId <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderActorId + " header"})
				return
			}
			ctx = utils.SetActorIdInContext(ctx, actorId)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
