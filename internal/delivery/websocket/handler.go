package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the HTTP routes
	},
}

// SnapshotSource lists the latest analyses.
type SnapshotSource interface {
	All(ctx context.Context) ([]domain.AnalysisResult, error)
}

// Handler streams the latest analyses snapshot to each client on an interval.
type Handler struct {
	source   SnapshotSource
	interval time.Duration
	logger   *logrus.Entry
}

func NewHandler(source SnapshotSource, interval time.Duration, logger *logrus.Logger) *Handler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Handler{
		source:   source,
		interval: interval,
		logger:   logger.WithField("component", "websocket"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.WithField("remote", r.RemoteAddr)
	log.Debug("New client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the close; client messages are ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.push(ctx, conn); err != nil {
		log.WithError(err).Debug("write failed")
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Client disconnected")
			return
		case <-ticker.C:
			if err := h.push(ctx, conn); err != nil {
				log.WithError(err).Debug("write failed")
				return
			}
		}
	}
}

func (h *Handler) push(ctx context.Context, conn *websocket.Conn) error {
	list, err := h.source.All(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("snapshot unavailable")
		return nil
	}
	if list == nil {
		list = make([]domain.AnalysisResult, 0)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(list)
}
