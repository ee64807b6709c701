package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients           map[string]*WsClient // clientID -> Client
	clientsMu         sync.RWMutex
	eventChannels     map[string]chan outbound.Event    // clientID -> local event channel
	subscriptions     map[string]map[uuid.UUID]struct{} // clientID -> subscribed auctions
	channelsMu        sync.RWMutex
	upgrader          websocket.Upgrader
	auctionService    inbound.AuctionService
	bidService        inbound.BidService
	collateralService inbound.CollateralService
	upkeepService     inbound.UpkeepService
	broadcaster       outbound.Broadcaster
	auth              *Authenticator
	logger            zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader          websocket.Upgrader
	AuctionService    inbound.AuctionService
	BidService        inbound.BidService
	CollateralService inbound.CollateralService
	UpkeepService     inbound.UpkeepService
	Broadcaster       outbound.Broadcaster
	Challenges        outbound.ChallengeStore
	ChallengeTTL      time.Duration
	Logger            zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:           make(map[string]*WsClient),
		eventChannels:     make(map[string]chan outbound.Event),
		subscriptions:     make(map[string]map[uuid.UUID]struct{}),
		upgrader:          params.Upgrader,
		auctionService:    params.AuctionService,
		bidService:        params.BidService,
		collateralService: params.CollateralService,
		upkeepService:     params.UpkeepService,
		broadcaster:       params.Broadcaster,
		auth:              NewAuthenticator(params.Challenges, params.ChallengeTTL),
		logger:            params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleChallenge issues a sign-in nonce for the address query parameter
func (handler *WsHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	participant, ok := addressParam(w, r)
	if !ok {
		return
	}

	challenge, err := handler.auth.Issue(r.Context(), participant)
	if err != nil {
		handler.logger.Error().Err(err).Str("participant", participant.Hex()).Msg("Failed to issue challenge")
		http.Error(w, "failed to issue challenge", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(challenge); err != nil {
		handler.logger.Error().Err(err).Msg("Failed to write challenge")
	}
}

// HandleWebSocket upgrades the connection once the caller proves it owns
// the address query parameter by signing a challenge nonce.
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	participant, ok := addressParam(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	nonce, signature := query.Get("nonce"), query.Get("signature")
	if nonce == "" || signature == "" {
		http.Error(w, "nonce and signature are required", http.StatusUnauthorized)
		return
	}
	if err := handler.auth.Verify(r.Context(), participant, nonce, signature); err != nil {
		if shared.KindOf(err) == shared.KindAuthorization {
			handler.logger.Warn().Err(err).Str("participant", participant.Hex()).Msg("WebSocket sign-in rejected")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		handler.logger.Error().Err(err).Msg("Failed to verify challenge")
		http.Error(w, "failed to verify challenge", http.StatusInternalServerError)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		Participant: participant,
		Conn:        conn,
		Handler:     handler,
		Logger:      handler.logger,
	})

	handler.registerClient(client)
	eventChan := handler.createEventChannel(client.id)

	client.Start()
	go handler.listenForClientEvents(client, eventChan)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("participant", client.participant.Hex()).Msg("WebSocket client connected")
}

func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan
	handler.subscriptions[clientID] = make(map[uuid.UUID]struct{})
	return eventChan
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

// unregisterClient drops every subscription before closing the event
// channel, so the broadcaster never writes to a closed channel
func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	remaining := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handler.channelsMu.Lock()
	for auctionID := range handler.subscriptions[client.id] {
		if err := handler.broadcaster.Unsubscribe(ctx, auctionID, client.id); err != nil {
			handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Failed to unsubscribe disconnected client")
		}
	}
	delete(handler.subscriptions, client.id)
	if eventChan, ok := handler.eventChannels[client.id]; ok {
		close(eventChan)
		delete(handler.eventChannels, client.id)
	}
	handler.channelsMu.Unlock()

	handler.logger.Info().Str("client_id", client.id).Str("participant", client.participant.Hex()).Int("total_clients", remaining).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the socket
func (handler *WsHandler) listenForClientEvents(client *WsClient, eventChan chan outbound.Event) {
	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(convertEventToMessage(event)); err != nil {
				handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func convertEventToMessage(event outbound.Event) *ServerMessage {
	auctionID := event.AuctionID
	return &ServerMessage{
		Type:      MessageTypeEvent,
		AuctionID: &auctionID,
		Event:     event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) HandleClientMessage(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(ctx, client, msg)
	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(ctx, client, msg)
	case MessageTypeGetAuction:
		return handler.handleGetAuction(ctx, client, msg)
	case MessageTypeListAuctions:
		return handler.handleListAuctions(ctx, client, msg)
	case MessageTypePayDeposit:
		return handler.handlePayDeposit(ctx, client, msg)
	case MessageTypeClaimRefund:
		return handler.handleClaimRefund(ctx, client, msg)
	case MessageTypeBid:
		return handler.handleBid(ctx, client, msg)
	case MessageTypeStartAuction:
		return handler.handleStartAuction(ctx, client, msg)
	case MessageTypeCheckUpkeep:
		return handler.handleCheckUpkeep(ctx, client, msg)
	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) handleSubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	auctionID := *msg.AuctionID

	if _, err := handler.auctionService.GetAuction(ctx, auctionID); err != nil {
		return err
	}

	handler.channelsMu.Lock()
	eventChan, ok := handler.eventChannels[client.id]
	if !ok {
		handler.channelsMu.Unlock()
		return shared.ErrClientEventChannelNotFound
	}
	if err := handler.broadcaster.Subscribe(ctx, auctionID, client.id, eventChan); err != nil {
		handler.channelsMu.Unlock()
		return err
	}
	handler.subscriptions[client.id][auctionID] = struct{}{}
	handler.channelsMu.Unlock()

	response := NewReply(MessageTypeSubscription, msg)
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Client subscribed to auction")
	return client.Send(response)
}

func (handler *WsHandler) handleUnsubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	auctionID := *msg.AuctionID

	handler.channelsMu.Lock()
	err := handler.broadcaster.Unsubscribe(ctx, auctionID, client.id)
	if err == nil {
		delete(handler.subscriptions[client.id], auctionID)
	}
	handler.channelsMu.Unlock()
	if err != nil {
		return err
	}

	response := NewReply(MessageTypeSubscription, msg)
	response.Data["status"] = "unsubscribed"
	return client.Send(response)
}

func (handler *WsHandler) handleGetAuction(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	view, err := handler.auctionService.GetAuction(ctx, *msg.AuctionID)
	if err != nil {
		return err
	}

	response := NewReply(MessageTypeAuction, msg)
	response.Data["auction"] = view
	return client.Send(response)
}

func (handler *WsHandler) handleListAuctions(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	req := inbound.ListAuctionsRequest{
		Page:     msg.intField("page", 1),
		PageSize: msg.intField("page_size", 10),
	}
	if s, ok := msg.Data["status"].(string); ok {
		status, _ := auction.ParseStatus(s)
		req.Status = &status
	}

	views, err := handler.auctionService.ListAuctions(ctx, req)
	if err != nil {
		return err
	}

	response := NewReply(MessageTypeAuctionList, msg)
	response.Data["auctions"] = views
	response.Data["count"] = len(views)
	return client.Send(response)
}

func (handler *WsHandler) handlePayDeposit(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	req := inbound.DepositRequest{AuctionID: *msg.AuctionID, Participant: client.participant}
	if err := handler.collateralService.PayDeposit(ctx, req); err != nil {
		return err
	}

	response := NewReply(MessageTypeDeposit, msg)
	response.Data["status"] = "paid"
	response.Data["participant"] = client.participant.Hex()
	return client.Send(response)
}

func (handler *WsHandler) handleClaimRefund(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	req := inbound.DepositRequest{AuctionID: *msg.AuctionID, Participant: client.participant}
	if err := handler.collateralService.ClaimRefund(ctx, req); err != nil {
		return err
	}

	response := NewReply(MessageTypeDeposit, msg)
	response.Data["status"] = "refunded"
	response.Data["participant"] = client.participant.Hex()
	return client.Send(response)
}

func (handler *WsHandler) handleBid(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	result, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: *msg.AuctionID,
		Bidder:    client.participant,
	})
	if err != nil {
		return err
	}

	response := NewReply(MessageTypeBidResult, msg)
	response.Data["winner"] = result.Winner.Hex()
	response.Data["final_price"] = result.FinalPrice.String()
	response.Data["status"] = result.Status
	return client.Send(response)
}

func (handler *WsHandler) handleStartAuction(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	if _, err := handler.auctionService.StartAuction(ctx, inbound.StartAuctionRequest{
		AuctionID: *msg.AuctionID,
		Caller:    client.participant,
	}); err != nil {
		return err
	}

	view, err := handler.auctionService.GetAuction(ctx, *msg.AuctionID)
	if err != nil {
		return err
	}
	response := NewReply(MessageTypeAuction, msg)
	response.Data["auction"] = view
	return client.Send(response)
}

func (handler *WsHandler) handleCheckUpkeep(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	check, err := handler.upkeepService.CheckUpkeep(ctx, *msg.AuctionID)
	if err != nil {
		return err
	}

	response := NewReply(MessageTypeUpkeep, msg)
	response.Data["needed"] = check.Needed
	response.Data["action"] = string(check.Action)
	response.Data["current_price"] = check.CurrentPrice.String()
	response.Data["scheduled_price"] = check.ScheduledPrice.String()
	return client.Send(response)
}

func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr := r.URL.Query().Get("address")
	if addr == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return common.Address{}, false
	}
	if !common.IsHexAddress(addr) {
		http.Error(w, "invalid address format", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}
