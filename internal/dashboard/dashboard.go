// Package dashboard serves the AirWave control panel: embedded static
// assets, a generated config.js pointing the browser at the MQTT broker,
// and a websocket feed bridging bus events to the page.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"airwave/internal/bus"
	"airwave/internal/logging"
)

//go:embed assets
var assets embed.FS

// Server is the dashboard HTTP server.
type Server struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	broker   string
	wsPort   int
	configJS []byte
	clients  map[*websocket.Conn]struct{}
}

// New builds a server that tells the browser to reach the broker at
// broker:wsPort for MQTT-over-websocket commands.
func New(broker string, wsPort int) *Server {
	s := &Server{
		log:     logging.Get(logging.CategoryDashboard),
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is same-network tooling, not an internet service.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.SetBroker(broker, wsPort)
	return s
}

// SetBroker regenerates config.js for a new broker address.
func (s *Server) SetBroker(broker string, wsPort int) {
	if wsPort == 0 {
		wsPort = 9001
	}
	js := fmt.Sprintf(`// Auto-generated by the AirWave launcher - DO NOT EDIT MANUALLY
// Run 'airwave setup' to reconfigure

const MQTT_CONFIG = {
    host: %q,
    wsPort: %d,
    get broker() {
        return `+"`ws://${this.host}:${this.wsPort}`"+`;
    }
};
`, broker, wsPort)

	s.mu.Lock()
	s.broker = broker
	s.wsPort = wsPort
	s.configJS = []byte(js)
	s.mu.Unlock()
	s.log.Info("dashboard config points at %s:%d", broker, wsPort)
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/config.js", s.handleConfigJS)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleConfigJS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	js := s.configJS
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/javascript")
	w.Write(js)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Debug("websocket client connected (%d total)", n)

	// Reader loop just detects disconnect; the feed is one-way.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// feedEvent is what goes over the websocket to the page.
type feedEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcast pushes one bus event to every connected page.
func (s *Server) Broadcast(topic string, payload []byte) {
	msg, err := json.Marshal(feedEvent{Topic: topic, Payload: payload})
	if err != nil {
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.dropClient(c)
		}
	}
}

// AttachBus forwards live events from the fabric into the websocket feed.
func (s *Server) AttachBus(b *bus.Bus) {
	for _, topic := range []string{
		bus.TopicGestures, bus.TopicMood,
		bus.TopicPi1Status, bus.TopicPi2Status,
	} {
		b.Subscribe(topic, func(topic string, payload []byte) {
			s.Broadcast(topic, payload)
		})
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort("", fmt.Sprintf("%d", port)),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("dashboard listening on http://localhost:%d", port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeClients()
		return nil
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
