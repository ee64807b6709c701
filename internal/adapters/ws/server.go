package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"dutch-auction-service/internal/config"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Server struct {
	handler    *WsHandler
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

type ServerParams struct {
	Config            *config.Config
	AuctionService    inbound.AuctionService
	BidService        inbound.BidService
	CollateralService inbound.CollateralService
	UpkeepService     inbound.UpkeepService
	Broadcaster       outbound.Broadcaster
	Challenges        outbound.ChallengeStore
	Logger            zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	handler := NewHandler(WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		AuctionService:    params.AuctionService,
		BidService:        params.BidService,
		CollateralService: params.CollateralService,
		UpkeepService:     params.UpkeepService,
		Broadcaster:       params.Broadcaster,
		Challenges:        params.Challenges,
		ChallengeTTL:      params.Config.WebSocket.ChallengeTTL,
		Logger:            params.Logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/ws/challenge", handler.HandleChallenge)
	mux.HandleFunc("/health", handleHealth)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(params.Config.Server.Host, params.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}

	return &Server{
		handler:    handler,
		httpServer: httpServer,
		config:     params.Config,
		logger:     params.Logger.With().Str("component", "ws_server").Logger(),
	}
}

// Handler exposes the connection handler, mainly for tests
func (s *Server) Handler() *WsHandler {
	return s.handler
}

// Start starts the WebSocket server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting WebSocket server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}

	return nil
}

// Stop gracefully stops the WebSocket server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Int("clients", s.handler.GetConnectedClients()).Msg("Stopping WebSocket server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown WebSocket server: %w", err)
	}

	s.logger.Info().Msg("WebSocket server stopped")
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok", "service": "dutch-auction-websocket"}`))
}
