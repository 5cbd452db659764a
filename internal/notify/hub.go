// Package notify pushes settlement results to websocket clients.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cypherlabdev/bet-simulator-service/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// MessageTypeBetSettled is the type of every settlement notification
const MessageTypeBetSettled = "bet_settled"

// SettlementMessage is the JSON frame sent when a bet settles
type SettlementMessage struct {
	Type       string          `json:"type"`
	BetID      string          `json:"bet_id"`
	EventID    string          `json:"event_id"`
	MatchName  string          `json:"match_name"`
	Selection  string          `json:"selection"`
	Status     string          `json:"status"`
	Stake      decimal.Decimal `json:"stake"`
	Payout     decimal.Decimal `json:"payout"`
	FinalScore string          `json:"final_score,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	SettledAt  *time.Time      `json:"settled_at,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans settlement messages out to every connected client
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]struct{}
	logger   zerolog.Logger
}

// NewHub creates a hub. A nil allowOrigin accepts every origin.
func NewHub(allowOrigin func(r *http.Request) bool, logger zerolog.Logger) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
		clients: make(map[*client]struct{}),
		logger:  logger.With().Str("component", "notify_hub").Logger(),
	}
}

// HandleWS upgrades the request and keeps the connection until the client
// goes away
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", total).Msg("websocket client connected")

	go h.writePump(c)
	h.readPump(c)
}

// NotifySettlement broadcasts a settled bet. Slow clients are dropped rather
// than blocking the ledger.
func (h *Hub) NotifySettlement(bet *models.Bet, wallet *models.Wallet) {
	msg := SettlementMessage{
		Type:      MessageTypeBetSettled,
		BetID:     bet.ID.String(),
		EventID:   bet.EventID,
		MatchName: bet.MatchName,
		Selection: bet.Selection,
		Status:    string(bet.Status),
		Stake:     bet.Stake,
		Payout:    decimal.Zero,
		SettledAt: bet.SettledAt,
	}
	if bet.Status == models.BetStatusWon {
		msg.Payout = bet.PotentialPayout()
	}
	if bet.FinalScore != nil {
		msg.FinalScore = *bet.FinalScore
	}
	if wallet != nil {
		msg.Balance = wallet.Balance
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode settlement message")
		return
	}
	h.broadcast(data)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Msg("websocket client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients have nothing to say; reading detects disconnects
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
