package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/gin-gonic/gin"
)

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware())
	r.Use(NewRateLimiter(nil, 1, time.Minute).Middleware())
	r.GET("/whoami", func(c *gin.Context) {
		actor, _ := utils.GetActorIdFromContext(c.Request.Context())
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"actor_id": actor, "correlation_id": cid})
	})
	return r
}

func TestSessionMiddleware(t *testing.T) {
	r := newSessionRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderActorId, "12")
	req.Header.Set(HeaderCorrelationId, "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"actor_id":12,"correlation_id":"trace-1"}` {
		t.Fatalf("body = %s", body)
	}
	if got := w.Header().Get(HeaderCorrelationId); got != "trace-1" {
		t.Fatalf("correlation header = %q", got)
	}

	// without headers a correlation id is generated; the nil-redis limiter never blocks
	for i := 0; i < 3; i++ {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		if w.Code != http.StatusOK || w.Header().Get(HeaderCorrelationId) == "" {
			t.Fatalf("request %d: status %d, correlation %q", i, w.Code, w.Header().Get(HeaderCorrelationId))
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderActorId, "-4")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid actor status = %d", w.Code)
	}
}
