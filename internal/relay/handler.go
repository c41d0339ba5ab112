package relay

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"coopmarket/internal/identity"
	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/transport/http/shared"
	dErrors "coopmarket/pkg/domain-errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set Authorization on websocket requests from every
	// stack, so cross-origin is allowed and auth happens via the resolver.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades /ws connections into relay clients. The connection
// authenticates through the same resolver as the REST API; the token may
// arrive in the Authorization header or a token query parameter.
type Handler struct {
	hub      *Hub
	bids     BidPlacer
	resolver *identity.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(hub *Hub, bids BidPlacer, resolver *identity.Resolver, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{hub: hub, bids: bids, resolver: resolver, logger: logger, metrics: m}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(queryToken)
		r.Use(h.resolver.Middleware())
		r.Get("/ws", h.handleConnect)
	})
}

// queryToken lifts a token query parameter into the Authorization header so
// the resolver sees a single credential shape.
func queryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if h.metrics != nil {
		h.metrics.RelayClients.Inc()
		defer h.metrics.RelayClients.Dec()
	}
	h.logger.Info("relay client connected", "email", principal.Email)

	client := newClient(h.hub, conn, principal, h.bids, h.logger)
	client.run(r.Context())

	h.logger.Info("relay client disconnected", "email", principal.Email)
}
