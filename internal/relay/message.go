package relay

import (
	"encoding/json"
	"time"
)

// Event names carried on the wire. join/leave manage room membership,
// place-bid is routed through the auction service, the rest are relayed to
// the named room.
const (
	EventJoin             = "join"
	EventLeave            = "leave"
	EventPlaceBid         = "place-bid"
	EventAuctionUpdate    = "auction-update"
	EventAuctionEnding    = "auction-ending"
	EventAuctionEnded     = "auction-ended"
	EventSendNotification = "send-notification"
	EventTyping           = "typing"
	EventChatMessage      = "chat-message"
	EventError            = "error"
)

// relayable lists the client events forwarded to a room as-is. place-bid is
// deliberately absent: bids only reach a room after the auction service
// accepts them.
var relayable = map[string]bool{
	EventAuctionEnding:    true,
	EventSendNotification: true,
	EventTyping:           true,
	EventChatMessage:      true,
}

// Message is the frame exchanged with clients and across the broadcast bus.
// Timestamp is always stamped server-side before a frame leaves the hub.
type Message struct {
	Event     string          `json:"event"`
	Room      string          `json:"room,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// AuctionRoom names the room for one auction.
func AuctionRoom(auctionID string) string {
	return "auction-" + auctionID
}

// placeBidPayload is the client intent behind a place-bid frame.
type placeBidPayload struct {
	AuctionID string  `json:"auctionId"`
	Amount    float64 `json:"amount"`
}

func errorMessage(room, reason string, now time.Time) Message {
	data, _ := json.Marshal(map[string]string{"message": reason})
	return Message{
		Event:     EventError,
		Room:      room,
		Data:      data,
		Timestamp: now,
	}
}
