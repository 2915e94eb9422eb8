package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"bandwidth-guard/internal/api/storage"
	"bandwidth-guard/internal/model"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit = 60
	maxLimit     = 1000

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var subscriberSeq atomic.Uint64

type Handlers struct {
	store      *storage.Storage
	thresholds model.ThresholdConfig
	logger     *logrus.Logger
	upgrader   websocket.Upgrader
}

func NewHandlers(store *storage.Storage, thresholds model.ThresholdConfig, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:      store,
		thresholds: thresholds,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				logger.Debugf("WebSocket origin check: %s", r.Header.Get("Origin"))
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Rates handlers
func (h *Handlers) GetLatestRate(w http.ResponseWriter, r *http.Request) {
	rate, ok := h.store.LatestRate()
	if !ok {
		writeError(w, http.StatusNotFound, "No measurement yet")
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (h *Handlers) GetRates(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	rates := h.store.GetRates(limit)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": rates,
		"total": len(rates),
		"limit": limit,
	})
}

// Alerts handlers
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	direction, ok := parseDirection(r.URL.Query().Get("direction"))
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be upload or download")
		return
	}

	limit := parseLimit(r)
	alerts := h.store.GetAlerts(limit, direction)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
		"limit": limit,
	})
}

func (h *Handlers) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.thresholds)
}

// Stream pushes measurements and alerts as they are stored. The optional
// type and direction query parameters narrow the subscription; direction
// applies to alerts only.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	filter := storage.EventFilter{Type: r.URL.Query().Get("type")}
	switch filter.Type {
	case "", storage.EventMeasurement, storage.EventAlert:
	default:
		writeError(w, http.StatusBadRequest, "type must be measurement or alert")
		return
	}
	direction, ok := parseDirection(r.URL.Query().Get("direction"))
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be upload or download")
		return
	}
	filter.Direction = direction

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := &storage.Subscriber{
		ID:      strconv.FormatUint(subscriberSeq.Add(1), 10),
		Channel: make(chan storage.Event, 100),
		Filter:  filter,
	}
	h.store.Subscribe(sub)
	defer h.store.Unsubscribe(sub)

	h.logger.Debugf("Stream subscriber %s connected from %s", sub.ID, r.RemoteAddr)

	// Read messages (for pong and close)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Channel:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Errorf("WebSocket write error: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				h.logger.Debugf("Ping failed: %v", err)
				return
			}
		case <-done:
			h.logger.Debugf("Stream subscriber %s disconnected", sub.ID)
			return
		}
	}
}

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func parseDirection(raw string) (model.Direction, bool) {
	switch model.Direction(raw) {
	case "":
		return "", true
	case model.DirectionUpload:
		return model.DirectionUpload, true
	case model.DirectionDownload:
		return model.DirectionDownload, true
	}
	return "", false
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
