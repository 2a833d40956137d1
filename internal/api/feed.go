package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"stellar-wallet-core/internal/domain"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedSendBuffer   = 16
)

// PriceUpdate is one message pushed to price stream clients.
type PriceUpdate struct {
	Token       string  `json:"token"`
	PriceUSD    float64 `json:"priceUsd"`
	TimestampMs int64   `json:"timestamp"`
}

// feedClient owns one connection. Only its writer goroutine writes data frames.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// PriceFeed pushes price updates to websocket clients.
type PriceFeed struct {
	mu       sync.Mutex
	clients  map[*feedClient]struct{}
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewPriceFeed creates an empty feed.
func NewPriceFeed(log zerolog.Logger) *PriceFeed {
	return &PriceFeed{
		clients:  make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log.With().Str("component", "price_feed").Logger(),
	}
}

// Broadcast queues samples for every client as one JSON array and never waits
// on a connection. Clients whose queue is full are dropped.
func (f *PriceFeed) Broadcast(samples []domain.PriceSample) {
	if len(samples) == 0 {
		return
	}
	updates := make([]PriceUpdate, len(samples))
	for i, s := range samples {
		updates[i] = PriceUpdate{Token: s.Token, PriceUSD: s.PriceUSD, TimestampMs: s.TimestampMs}
	}
	msg, err := json.Marshal(updates)
	if err != nil {
		f.log.Error().Err(err).Msg("failed to marshal price update")
		return
	}

	for _, c := range f.snapshot() {
		select {
		case c.send <- msg:
		default:
			f.log.Debug().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow price stream client")
			f.remove(c)
		}
	}
}

func (f *PriceFeed) snapshot() []*feedClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		out = append(out, c)
	}
	return out
}

func (f *PriceFeed) remove(c *feedClient) {
	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	c.close()
}

// Clients returns the number of connected clients.
func (f *PriceFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client.
func (f *PriceFeed) Close() {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[*feedClient]struct{})
	f.mu.Unlock()

	for c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		c.close()
	}
}

func (f *PriceFeed) serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &feedClient{
		conn: conn,
		send: make(chan []byte, feedSendBuffer),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.write(c)

	// Reads only detect disconnects; client messages are ignored.
	go func() {
		defer f.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (f *PriceFeed) write(c *feedClient) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				f.log.Debug().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("dropping price stream client")
				f.remove(c)
				return
			}
		}
	}
}

// PriceStream upgrades the request to a websocket subscribed to price updates.
func (s *Server) PriceStream(ctx echo.Context) error {
	if s.feed == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "price feed disabled")
	}
	if err := s.feed.serve(ctx.Response(), ctx.Request()); err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
	return nil
}
