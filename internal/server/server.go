// Package server exposes the latest overlay placement over HTTP and a
// websocket stream for debugging.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/dudu/augcam/internal/overlay"
	"github.com/dudu/augcam/internal/pipeline"
)

// clientBuffer is how many updates a slow websocket client may lag behind
// before updates to it are dropped.
const clientBuffer = 4

// Update is the JSON document served for each processed frame.
type Update struct {
	Session   string            `json:"session"`
	Frame     uint64            `json:"frame"`
	Captured  time.Time         `json:"captured"`
	Placement overlay.Placement `json:"placement"`
	Timing    Timing            `json:"timing"`
}

// Timing is pipeline.Timing in milliseconds.
type Timing struct {
	Detection float64 `json:"detection_ms"`
	Placement float64 `json:"placement_ms"`
	Compose   float64 `json:"compose_ms"`
	Total     float64 `json:"total_ms"`
}

// Server is a pipeline sink backed by a fiber app.
type Server struct {
	app *fiber.App
	log logrus.FieldLogger

	latest  atomic.Pointer[Update]
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

var _ pipeline.Sink = (*Server)(nil)

// New creates the server and registers its routes.
func New(log logrus.FieldLogger) *Server {
	s := &Server{
		log:     log,
		clients: make(map[chan []byte]struct{}),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "augcam debug",
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)
	s.app.Get("/placement", s.placement)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.stream))
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Close is called.
func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("debug server listening")
	return s.app.Listen(addr)
}

// Close shuts the server down and disconnects stream clients.
func (s *Server) Close() error {
	s.mu.Lock()
	for ch := range s.clients {
		close(ch)
		delete(s.clients, ch)
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

// Publish records out as the latest update and fans it out to stream
// clients.
func (s *Server) Publish(out pipeline.Output) error {
	u := &Update{
		Session:   out.Session,
		Frame:     out.Frame.Seq,
		Captured:  out.Frame.Captured,
		Placement: out.Placement,
		Timing: Timing{
			Detection: ms(out.Timing.Detection),
			Placement: ms(out.Timing.Placement),
			Compose:   ms(out.Timing.Compose),
			Total:     ms(out.Timing.Total),
		},
	}
	s.latest.Store(u)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return nil
	}
	payload, err := jsoniter.Marshal(u)
	if err != nil {
		return err
	}
	for ch := range s.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Latest returns the last published update.
func (s *Server) Latest() (Update, bool) {
	u := s.latest.Load()
	if u == nil {
		return Update{}, false
	}
	return *u, true
}

func (s *Server) health(c *fiber.Ctx) error {
	s.mu.Lock()
	clients := len(s.clients)
	s.mu.Unlock()
	return c.JSON(fiber.Map{"status": "ok", "clients": clients})
}

func (s *Server) placement(c *fiber.Ctx) error {
	u, ok := s.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame processed yet"})
	}
	return c.JSON(u)
}

func (s *Server) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[ch]; ok {
		delete(s.clients, ch)
		close(ch)
	}
}

func (s *Server) stream(c *websocket.Conn) {
	ch := s.subscribe()
	defer s.unsubscribe(ch)
	s.log.Debug("stream client connected")
	defer s.log.Debug("stream client disconnected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.WithError(err).Debug("stream write failed")
				return
			}
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
