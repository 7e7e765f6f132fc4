package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/transport"
)

const (
	readLimit    = 64 * 1024
	readDeadline = 90 * time.Second
)

// Server upgrades HTTP connections to WebSockets for devices that push
// telemetry frames directly instead of going through a broker.
type Server struct {
	ingestor *transport.Ingestor
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer builds ws ingest server.
func NewServer(ingestor *transport.Ingestor, logger *zap.Logger) *Server {
	return &Server{
		ingestor: ingestor,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for the /ws/telemetry endpoint. Each text
// message on the socket is one raw telemetry frame.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	go s.readPump(conn, r.RemoteAddr)
}

func (s *Server) readPump(conn *websocket.Conn, remote string) {
	defer conn.Close()
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	s.logger.Info("telemetry feed connected", zap.String("remote", remote))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("telemetry feed closed", zap.String("remote", remote), zap.Error(err))
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		s.ingestor.Ingest(message, time.Now().UTC())
	}
}
