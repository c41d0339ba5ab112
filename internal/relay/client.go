package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	auctionmodels "coopmarket/internal/auction/models"
	"coopmarket/internal/identity"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// BidPlacer routes place-bid frames through the auction engine. Only
// accepted bids come back out through the hub's event sink.
type BidPlacer interface {
	PlaceBid(ctx context.Context, principal identity.Principal, auctionID domain.AuctionID, amount float64) (*auctionmodels.Bid, *auctionmodels.Auction, error)
}

// Client is one websocket connection bound to a resolved principal.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal identity.Principal
	bids      BidPlacer
	outbox    chan Message
	logger    *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, principal identity.Principal, bids BidPlacer, logger *slog.Logger) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		principal: principal,
		bids:      bids,
		outbox:    make(chan Message, sendBuffer),
		logger:    logger,
	}
}

// send queues a frame without blocking the hub; a slow client loses frames
// rather than stalling the room.
func (c *Client) send(msg Message) {
	select {
	case c.outbox <- msg:
	default:
	}
}

func (c *Client) run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		close(c.outbox)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(errorMessage("", "invalid frame", time.Now()))
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg Message) {
	switch {
	case msg.Event == EventJoin:
		if msg.Room != "" {
			c.hub.join(msg.Room, c)
		}
	case msg.Event == EventLeave:
		if msg.Room != "" {
			c.hub.leave(msg.Room, c)
		}
	case msg.Event == EventPlaceBid:
		c.placeBid(ctx, msg)
	case relayable[msg.Event]:
		if msg.Room == "" {
			c.send(errorMessage("", "room is required", time.Now()))
			return
		}
		msg.Sender = c.principal.Email
		msg.Timestamp = time.Now()
		c.hub.Broadcast(ctx, msg)
	default:
		c.send(errorMessage(msg.Room, "unknown event", time.Now()))
	}
}

func (c *Client) placeBid(ctx context.Context, msg Message) {
	var payload placeBidPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.send(errorMessage(msg.Room, "invalid bid payload", time.Now()))
		return
	}
	auctionID, err := domain.ParseAuctionID(payload.AuctionID)
	if err != nil {
		c.send(errorMessage(msg.Room, "invalid auction id", time.Now()))
		return
	}

	if _, _, err := c.bids.PlaceBid(ctx, c.principal, auctionID, payload.Amount); err != nil {
		c.send(errorMessage(AuctionRoom(payload.AuctionID), dErrors.MessageOf(err), time.Now()))
	}
	// The accepted bid reaches the room through the auction service's event
	// sink; nothing to do here on success.
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
