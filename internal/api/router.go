package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/zatoshilabs/zord/internal/cache"
	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/livefeed"
	"github.com/zatoshilabs/zord/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the read-only HTTP surface: paginated scans, per-ticker
// summaries, rank-of-address, per-address portfolios, name resolution,
// and a live feed of newly committed blocks.
func NewRouter(s *store.Store, chain chainclient.Client, c *cache.Cache, hub *livefeed.Hub) *chi.Mux {
	srv := &Server{Store: s, Chain: chain, Cache: c, Hub: hub}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(SecureHeadersMiddleware())
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "zord"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)

		r.Get("/inscriptions", srv.handleListInscriptions)
		r.Get("/inscriptions/{id}", srv.handleGetInscription)

		r.Get("/tokens", srv.handleListTokens)
		r.Get("/tokens/{tick}", srv.handleGetToken)
		r.Get("/tokens/{tick}/integrity", srv.handleTokenIntegrity)
		r.Get("/tokens/{tick}/rank/{address}", srv.handleTokenRank)

		r.Get("/collections", srv.handleListCollections)
		r.Get("/collections/{collection}", srv.handleGetCollection)
		r.Get("/collections/{collection}/tokens", srv.handleListCollectionTokens)
		r.Get("/collections/{collection}/tokens/{id}", srv.handleGetNftToken)

		r.Get("/names", srv.handleListNames)
		r.Get("/names/{name}", srv.handleResolveName)

		r.Get("/addresses/{address}/inscriptions", srv.handleListInscriptionsByAddress)
		r.Get("/addresses/{address}/tokens", srv.handleAddressPortfolio)
	})

	if hub != nil {
		r.Get("/ws", srv.handleWebSocket)
	}

	return r
}

// handleWebSocket upgrades the connection and registers it with the live
// feed hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := livefeed.NewClient(s.Hub, conn, GetClientIP(r))
	go client.WritePump(r.Context())
	go client.ReadPump(r.Context())
}
