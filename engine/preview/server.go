// Package preview serves rendered fog frames to a browser over a websocket and
// relays the viewer's camera and fog commands back to the render loop.
package preview

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed assets/index.html
var indexPage []byte

// client is one connected viewer. Writes are serialized per connection.
type client struct {
	conn *websocket.Conn
	mu   *sync.Mutex
}

// server is the implementation of the Server interface.
type server struct {
	mu *sync.RWMutex

	upgrader     websocket.Upgrader
	clients      map[*websocket.Conn]*client
	commands     chan Command
	latest       []byte
	writeTimeout time.Duration
}

// Server pushes PNG frames to every connected viewer and collects their commands.
// Thread-safe for concurrent access.
type Server interface {
	// Handler returns the HTTP handler serving the viewer page at / and the
	// websocket at /ws.
	Handler() http.Handler

	// ListenAndServe serves Handler on addr until ctx is cancelled.
	//
	// Parameters:
	//   - ctx: stops the server when done
	//   - addr: the listen address, e.g. ":8080"
	//
	// Returns:
	//   - error: a listen error; nil after a clean shutdown
	ListenAndServe(ctx context.Context, addr string) error

	// Publish sends frame to every viewer as a binary message and keeps it for
	// viewers that connect later. Viewers whose write fails are dropped.
	//
	// Parameters:
	//   - frame: encoded image bytes
	Publish(frame []byte)

	// Commands returns the channel of decoded viewer commands. Commands that
	// arrive while the channel is full are dropped.
	Commands() <-chan Command

	// Clients returns the number of connected viewers.
	Clients() int

	// Close disconnects every viewer.
	Close()
}

var _ Server = &server{}

// NewServer creates a preview server.
//
// Parameters:
//   - options: functional options for the server
//
// Returns:
//   - Server: the newly created server
func NewServer(options ...ServerBuilderOption) Server {
	s := &server{
		mu: &sync.RWMutex{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
		},
		clients:      make(map[*websocket.Conn]*client),
		commands:     make(chan Command, 64),
		writeTimeout: 2 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.serveWebSocket)
	return mux
}

func (s *server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Preview] serving on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Preview] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, mu: &sync.Mutex{}}
	s.mu.Lock()
	s.clients[conn] = c
	latest := s.latest
	s.mu.Unlock()
	defer s.removeClient(conn)

	if latest != nil {
		if err := s.write(c, latest); err != nil {
			return
		}
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Preview] websocket read failed: %v", err)
			}
			return
		}
		select {
		case s.commands <- cmd:
		default:
			log.Printf("[Preview] command queue full, dropping %q", cmd.Type)
		}
	}
}

func (s *server) write(c *client, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
}

func (s *server) Publish(frame []byte) {
	s.mu.Lock()
	s.latest = frame
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var failed []*websocket.Conn
	for _, c := range clients {
		if err := s.write(c, frame); err != nil {
			log.Printf("[Preview] websocket write failed: %v", err)
			c.conn.Close()
			failed = append(failed, c.conn)
		}
	}

	if len(failed) > 0 {
		s.mu.Lock()
		for _, conn := range failed {
			delete(s.clients, conn)
		}
		s.mu.Unlock()
	}
}

func (s *server) Commands() <-chan Command {
	return s.commands
}

func (s *server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}
