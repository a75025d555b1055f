package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientMessage is an inbound control message from a subscriber.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope for everything the server pushes.
type ServerMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocketServer upgrades subscription connections, replays the last known
// snapshot, and services track_event / get_dashboard control messages.
type WebSocketServer struct {
	hub       *Hub
	processor ports.Processor
	dashboard ports.DashboardService
	cache     ports.CounterCache

	pingInterval time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewWebSocketServer(hub *Hub, processor ports.Processor, dashboard ports.DashboardService, cache ports.CounterCache, pingInterval time.Duration, logger *zap.SugaredLogger) *WebSocketServer {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &WebSocketServer{
		hub:          hub,
		processor:    processor,
		dashboard:    dashboard,
		cache:        cache,
		pingInterval: pingInterval,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

// Handle upgrades the request and runs the connection loop until disconnect.
func (s *WebSocketServer) Handle(c *gin.Context) {
	organizationID := c.Param("organization_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	transport := newWSTransport(conn, s.writeTimeout)
	sub := s.hub.Register(transport, organizationID)
	defer func() {
		s.hub.Unregister(sub.ID)
		conn.Close()
		s.logger.Infow("subscriber disconnected", "subscriber_id", sub.ID)
	}()

	// Three missed probes end the read; a pong resets the deadline.
	readTimeout := 3 * s.pingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	s.sendInitialMetrics(c.Request.Context(), sub.ID)

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan ClientMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.hub.Touch(sub.ID)
			if err := s.handleMessage(c.Request.Context(), sub, msg); err != nil {
				s.logger.Infow("error handling subscriber message", "subscriber_id", sub.ID, "error", err)
				s.sendError(sub.ID, err.Error())
			}

		case <-pingTicker.C:
			// Idle probe, not a close. Send failures end the connection.
			if err := transport.WriteControl(websocket.PingMessage, time.Now().Add(s.writeTimeout)); err != nil {
				s.logger.Infow("error sending ping", "subscriber_id", sub.ID, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading subscriber message", "subscriber_id", sub.ID, "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, sub *Subscriber, msg ClientMessage) error {
	switch msg.Type {
	case "track_event":
		return s.handleTrackEvent(ctx, sub, msg)
	case "get_dashboard":
		return s.handleGetDashboard(ctx, sub)
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *WebSocketServer) handleTrackEvent(ctx context.Context, sub *Subscriber, msg ClientMessage) error {
	var event domain.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return fmt.Errorf("invalid track_event payload: %w", err)
	}
	if event.Type == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.OrganizationID == "" {
		event.OrganizationID = sub.OrganizationID
	}

	result := s.processor.Process(ctx, &event)

	if err := s.hub.SendTo(sub.ID, ServerMessage{
		Type:      "event_processed",
		Data:      result,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	// Fan the result out to the rest of the organization, not the sender.
	s.hub.Broadcast(sub.OrganizationID, ServerMessage{
		Type:      "real_time_update",
		Data:      result,
		Timestamp: time.Now(),
	}, sub.ID)

	return nil
}

func (s *WebSocketServer) handleGetDashboard(ctx context.Context, sub *Subscriber) error {
	data, err := s.dashboard.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}

	return s.hub.SendTo(sub.ID, ServerMessage{
		Type:      "dashboard_data",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendInitialMetrics replays the last cached snapshot on connect, if any.
func (s *WebSocketServer) sendInitialMetrics(ctx context.Context, subscriberID string) {
	snapshot, err := s.cache.GetSnapshot(ctx)
	if err != nil {
		if err != domain.ErrSnapshotNotFound {
			s.logger.Warnw("failed to load initial snapshot", "error", err)
		}
		return
	}

	if err := s.hub.SendTo(subscriberID, ServerMessage{
		Type:      "initial_metrics",
		Data:      snapshot,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Infow("failed to send initial metrics", "subscriber_id", subscriberID, "error", err)
	}
}

func (s *WebSocketServer) sendError(subscriberID, message string) {
	s.hub.SendTo(subscriberID, ServerMessage{
		Type:      "error",
		Data:      gin.H{"message": message},
		Timestamp: time.Now(),
	})
}
