package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tolelom/arcadechain/events"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	wsClientBuffer = 256
)

// EventStream fans committed events out to websocket clients. A client that
// falls behind by more than its buffer is disconnected.
type EventStream struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	out    chan []byte
	filter map[events.EventType]bool // nil → every type
	once   sync.Once
}

func (c *wsClient) close() { c.once.Do(func() { close(c.out) }) }

func (c *wsClient) wants(t events.EventType) bool {
	return c.filter == nil || c.filter[t]
}

// NewEventStream subscribes to every event on emitter.
func NewEventStream(emitter *events.Emitter, logger zerolog.Logger) *EventStream {
	s := &EventStream{
		log: logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
	emitter.SubscribeAll(s.broadcast)
	return s
}

// Clients returns the number of connected subscribers.
func (s *EventStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *EventStream) broadcast(ev events.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Str("type", string(ev.Type)).Msg("encode event")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.out <- b:
		default:
			s.log.Warn().Msg("slow subscriber dropped")
			delete(s.clients, c)
			c.close()
		}
	}
}

func (s *EventStream) remove(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away. The optional "types" query parameter, repeated, limits the stream to
// the named event types.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	c := &wsClient{out: make(chan []byte, wsClientBuffer)}
	if types := r.URL.Query()["types"]; len(types) > 0 {
		c.filter = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			c.filter[events.EventType(t)] = true
		}
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer s.remove(c)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	// Reader: only control frames are expected; any error ends the session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case b, ok := <-c.out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
