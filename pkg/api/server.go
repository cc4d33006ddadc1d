package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/dropset-labs/dropset/pkg/crypto"
	"github.com/dropset-labs/dropset/pkg/engine"
	"github.com/dropset-labs/dropset/pkg/host"
	"github.com/dropset-labs/dropset/pkg/market"
	"github.com/dropset-labs/dropset/pkg/mempool"
	"github.com/dropset-labs/dropset/pkg/vault"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	markets *market.Registry
	mempool *mempool.Mempool
	vault   *vault.Manager
	host    *host.Host

	router *mux.Router
	hub    *Hub
	txLog  *os.File // Transaction log file
}

// NewServer creates a new API server over a market registry, mempool,
// vault ledger and signature/dispatch host.
func NewServer(markets *market.Registry, mp *mempool.Mempool, vaultMgr *vault.Manager, h *host.Host) *Server {
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/transactions.log"
	}

	os.MkdirAll("data", 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open tx log file %s: %v", txLogPath, err)
		txLog = nil
	} else {
		log.Printf("[api] transaction log: %s", txLogPath)
	}

	s := &Server{
		markets: markets,
		mempool: mp,
		vault:   vaultMgr,
		host:    h,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		txLog:   txLog,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{address}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{address}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{address}/trades", s.handleGetTrades).Methods("GET")

	// Seat endpoints
	api.HandleFunc("/markets/{address}/seats/{user}", s.handleGetSeat).Methods("GET")

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	// Signed instruction submission
	api.HandleFunc("/instructions", s.handleSubmitInstruction).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	entries := s.markets.List()
	response := make([]MarketInfo, len(entries))
	for i, e := range entries {
		response[i] = marketInfoFromEntry(e)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := decodeAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid market address", err.Error())
		return
	}
	entry, err := s.markets.Get(addr)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}
	respondJSON(w, marketInfoFromEntry(entry))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	addr, err := decodeAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid market address", err.Error())
		return
	}
	entry, err := s.markets.Get(addr)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}

	snapshot, err := snapshotOrderbook(addr, entry.Region)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read orderbook", err.Error())
		return
	}
	respondJSON(w, snapshot)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	// Fills are only observable through the engine's event buffer at block
	// execution time; this node does not yet persist a separate trade
	// history, so the feed is WebSocket-only (see handleWebSocket).
	respondJSON(w, []TradeInfo{})
}

func (s *Server) handleGetSeat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	marketAddr, err := decodeAddress(vars["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid market address", err.Error())
		return
	}
	userID, err := decodeAddress(vars["user"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id", err.Error())
		return
	}

	entry, err := s.markets.Get(marketAddr)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}

	seat, err := engine.FindSeat(entry.Region, engine.UserID(userID))
	if err != nil {
		respondError(w, http.StatusNotFound, "seat not found", err.Error())
		return
	}

	respondJSON(w, SeatInfo{
		Market:         vars["address"],
		User:           vars["user"],
		Sector:         seat.Index(),
		BaseDeposited:  seat.BaseDeposited(),
		BaseAvailable:  seat.BaseAvailable(),
		QuoteDeposited: seat.QuoteDeposited(),
		QuoteAvailable: seat.QuoteAvailable(),
	})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	response := ChainStatus{
		Height:       0,
		View:         0,
		AvgBlockTime: 100.0,
		MempoolSize:  s.mempool.Len(),
		Validators:   4,
	}
	respondJSON(w, response)
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	var req SubmitInstructionRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON instruction", err.Error())
		return
	}

	instr, signature, err := decodeInstructionRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed instruction", err.Error())
		return
	}

	if !s.markets.Exists(instr.Market) {
		respondError(w, http.StatusNotFound, "unknown market", hex.EncodeToString(instr.Market[:]))
		return
	}

	envelope, err := host.EncodeEnvelope(instr, signature, req.IsBaseAsset, nil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to encode instruction envelope", err.Error())
		return
	}

	s.mempool.PushRaw(envelope)

	log.Printf("[api] instruction submitted: tag=%d sender=%x nonce=%d bytes=%d",
		instr.Tag, instr.Sender, instr.Nonce, len(envelope))

	s.logTransaction("INSTRUCTION_SUBMIT", map[string]interface{}{
		"market": hex.EncodeToString(instr.Market[:]),
		"sender": hex.EncodeToString(instr.Sender[:]),
		"nonce":  instr.Nonce,
		"tag":    instr.Tag,
	})

	respondJSON(w, SubmitInstructionResponse{Status: "submitted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from consensus)
// ==============================

// BroadcastOrderbook broadcasts an orderbook update to WebSocket clients
// subscribed to a market's channel.
func (s *Server) BroadcastOrderbook(marketAddr [32]byte, height int64) {
	entry, err := s.markets.Get(marketAddr)
	if err != nil {
		return
	}

	snapshot, err := snapshotOrderbook(marketAddr, entry.Region)
	if err != nil {
		return
	}

	update := OrderbookUpdate{
		Type:      "orderbook",
		Market:    snapshot.Market,
		Bids:      snapshot.Bids,
		Asks:      snapshot.Asks,
		Timestamp: time.Now().UnixMilli(),
		Height:    height,
	}

	s.hub.BroadcastToChannel("orderbook:"+snapshot.Market, update)
}

// ==============================
// Helper Functions
// ==============================

func decodeAddress(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32-byte address, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func decodeInstructionRequest(req SubmitInstructionRequest) (*crypto.Instruction, []byte, error) {
	market, err := decodeAddress(req.Market)
	if err != nil {
		return nil, nil, err
	}
	sender, err := decodeAddress(req.Sender)
	if err != nil {
		return nil, nil, err
	}
	body, err := hex.DecodeString(trimHexPrefix(req.Body))
	if err != nil {
		return nil, nil, err
	}
	signature, err := hex.DecodeString(trimHexPrefix(req.Signature))
	if err != nil {
		return nil, nil, err
	}

	instr := &crypto.Instruction{
		Market: market,
		Sender: sender,
		Nonce:  req.Nonce,
		Tag:    uint8(req.Tag),
		Body:   body,
	}
	return instr, signature, nil
}

func marketInfoFromEntry(e *market.Entry) MarketInfo {
	return MarketInfo{
		Address:    hex.EncodeToString(e.Address[:]),
		BaseMint:   hex.EncodeToString(e.Params.BaseMint[:]),
		QuoteMint:  hex.EncodeToString(e.Params.QuoteMint[:]),
		Bump:       int(e.Params.Bump),
		NumSectors: int(e.Params.NumSectors),
	}
}

func snapshotOrderbook(marketAddr [32]byte, region *engine.Region) (OrderbookSnapshot, error) {
	bidViews, err := engine.SideLevels(region, true)
	if err != nil {
		return OrderbookSnapshot{}, err
	}
	askViews, err := engine.SideLevels(region, false)
	if err != nil {
		return OrderbookSnapshot{}, err
	}

	return OrderbookSnapshot{
		Market:    hex.EncodeToString(marketAddr[:]),
		Bids:      priceLevelsFromViews(bidViews),
		Asks:      priceLevelsFromViews(askViews),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func priceLevelsFromViews(views []engine.OrderView) []PriceLevel {
	levels := make([]PriceLevel, len(views))
	for i, v := range views {
		price, _ := engine.Decode(engine.EncodedPrice(v.EncodedPrice))
		asFloat, _ := price.ToFloat64()
		levels[i] = PriceLevel{
			Price:          asFloat,
			BaseRemaining:  v.BaseRemaining,
			QuoteRemaining: v.QuoteRemaining,
			Sector:         v.Sector,
		}
	}
	return levels
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}

// logTransaction writes an instruction submission event to the log file.
func (s *Server) logTransaction(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal tx log entry: %v", err)
		return
	}

	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
