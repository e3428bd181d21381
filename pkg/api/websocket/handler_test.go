package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/hubcycle/pkg/adapters/events/memory"
	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunStreamFiltersByRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := eventsmemory.NewInMemoryEventBus()
	router := gin.New()
	router.GET("/api/v1/runs/:run/ws", NewHandler(bus, zap.NewNop()).HandleRunStream)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/runs/run-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Publish until the subscription is in place and the event arrives.
	received := make(chan domain.Event, 1)
	go func() {
		var event domain.Event
		if err := conn.ReadJSON(&event); err == nil {
			received <- event
		}
	}()

	ctx := context.Background()
	deadline := time.After(5 * time.Second)
	for {
		_ = bus.Publish(ctx, ports.EventsTopic, domain.Event{ID: "other", RunID: "run-2", Type: domain.EventTypeRetry})
		_ = bus.Publish(ctx, ports.EventsTopic, domain.Event{ID: "mine", RunID: "run-1", Type: domain.EventTypeHubCompleted, Agent: "left"})

		select {
		case event := <-received:
			assert.Equal(t, "mine", event.ID)
			assert.Equal(t, domain.EventTypeHubCompleted, event.Type)
			assert.Equal(t, "left", event.Agent)
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}
