package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/pkg/messaging/redis"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
)

func serve(t *testing.T, hub *Hub, to model.Recipient) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeSession(w, r, to)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.SessionCount(to) == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func event(to model.Recipient, title string) model.PushEvent {
	return model.PushEvent{
		Type:      model.PushEventNotification,
		Recipient: to,
		Notification: &model.Notification{
			ID:            uuid.New(),
			RecipientKind: to.Kind,
			RecipientID:   to.ID,
			Title:         title,
		},
	}
}

func TestHubDeliversToRecipientOnly(t *testing.T) {
	hub := NewHub(nil, []string{"*"})
	clinic := model.ClinicRecipient(uuid.New())
	conn := serve(t, hub, clinic)

	// Same id, other kind: must not reach the clinic session.
	require.NoError(t, hub.Send(context.Background(), event(model.LabRecipient(clinic.ID), "lab only")))
	require.NoError(t, hub.Send(context.Background(), event(clinic, "Job status updated")))

	var got model.PushEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, clinic, got.Recipient)
	assert.Equal(t, "Job status updated", got.Notification.Title)
}

func TestHubSendWithoutSessions(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.NoError(t, hub.Send(context.Background(), event(model.LabRecipient(uuid.New()), "nobody")))
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, []string{"*"})
	lab := model.LabRecipient(uuid.New())
	conn := serve(t, hub, lab)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.SessionCount(lab) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubAnswersPing(t *testing.T) {
	hub := NewHub(nil, []string{"*"})
	conn := serve(t, hub, model.LabRecipient(uuid.New()))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var got map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pong", got["type"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}

func TestRelayDeliversBrokerEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	broker, err := redis.NewRedisBroker(redis.Config{URL: "redis://" + mr.Addr()}, zerolog.Nop(), metrics.NewMetrics("test", nil))
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })

	hub := NewHub(nil, []string{"*"})
	lab := model.LabRecipient(uuid.New())
	conn := serve(t, hub, lab)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, NewRelay(broker, "", hub, nil).Start(ctx))

	require.NoError(t, NewBrokerChannel(broker, "").Send(ctx, event(lab, "New partner linked")))

	var got model.PushEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "New partner linked", got.Notification.Title)
}
