package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	auctionmodels "coopmarket/internal/auction/models"
	"coopmarket/internal/platform/metrics"
)

// Bridge fans broadcasts out to other instances. The Redis pub/sub bridge
// implements it; a nil bridge keeps everything in-process.
type Bridge interface {
	Publish(ctx context.Context, msg Message) error
}

// Hub tracks rooms and their connected clients and delivers frames to them.
// It is the in-process end of the broadcast bus.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	bridge  Bridge
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// SetBridge installs the cross-instance bridge. Called once during wiring.
func (h *Hub) SetBridge(bridge Bridge) {
	h.bridge = bridge
}

func (h *Hub) join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[room] = clients
	}
	clients[c] = struct{}{}
}

func (h *Hub) leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast stamps the frame and fans it out. With a bridge installed the
// frame goes through Redis and comes back to every instance's hub, this one
// included, so local delivery happens exactly once either way.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if h.bridge == nil {
		h.deliver(msg)
		return
	}
	if err := h.bridge.Publish(ctx, msg); err != nil {
		h.logger.WarnContext(ctx, "failed to publish relay frame to bridge",
			"error", err,
			"event", msg.Event,
		)
		h.deliver(msg)
	}
}

// deliver sends the frame to local room members only. The bridge calls this
// for remote frames so they are not re-published.
func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[msg.Room] {
		client.send(msg)
	}
}

// AuctionUpdated implements the auction service event sink: accepted bids and
// activations fan out to the auction's room.
func (h *Hub) AuctionUpdated(auction *auctionmodels.Auction, bid *auctionmodels.Bid) {
	payload := map[string]any{"auction": auction}
	if bid != nil {
		payload["bid"] = bid
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to encode auction update", "error", err)
		return
	}
	h.Broadcast(context.Background(), Message{
		Event: EventAuctionUpdate,
		Room:  AuctionRoom(auction.ID.String()),
		Data:  data,
	})
}

// AuctionEnded implements the auction service event sink for terminal states.
func (h *Hub) AuctionEnded(auction *auctionmodels.Auction) {
	data, err := json.Marshal(map[string]any{"auction": auction})
	if err != nil {
		h.logger.Warn("failed to encode auction end", "error", err)
		return
	}
	h.Broadcast(context.Background(), Message{
		Event: EventAuctionEnded,
		Room:  AuctionRoom(auction.ID.String()),
		Data:  data,
	})
}
