package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo represents a market's static configuration.
type MarketInfo struct {
	Address    string `json:"address"`    // hex-encoded derived market address
	BaseMint   string `json:"baseMint"`   // hex-encoded base asset mint
	QuoteMint  string `json:"quoteMint"`  // hex-encoded quote asset mint
	Bump       int    `json:"bump"`
	NumSectors int    `json:"numSectors"`
}

// OrderbookSnapshot represents current orderbook state.
type OrderbookSnapshot struct {
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"` // best first
	Asks      []PriceLevel `json:"asks"` // best first
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel represents one resting order in a book snapshot.
type PriceLevel struct {
	Price          float64 `json:"price"`
	BaseRemaining  uint64  `json:"baseRemaining"`
	QuoteRemaining uint64  `json:"quoteRemaining"`
	Sector         uint32  `json:"sector"`
}

// TradeInfo represents one historical fill. Not currently persisted
// separately from the engine's transient event buffer; reserved for when
// a trade-history store is added.
type TradeInfo struct {
	Market    string  `json:"market"`
	Price     float64 `json:"price"`
	BaseQty   uint64  `json:"baseQty"`
	IsBuy     bool    `json:"isBuy"`
	Timestamp int64   `json:"timestamp"`
}

// SeatInfo represents one user's balances in a market.
type SeatInfo struct {
	Market         string `json:"market"`
	User           string `json:"user"` // hex-encoded UserID
	Sector         uint32 `json:"sector"`
	BaseDeposited  uint64 `json:"baseDeposited"`
	BaseAvailable  uint64 `json:"baseAvailable"`
	QuoteDeposited uint64 `json:"quoteDeposited"`
	QuoteAvailable uint64 `json:"quoteAvailable"`
}

// ChainStatus represents consensus layer status.
type ChainStatus struct {
	Height       int64   `json:"height"`       // Current block height
	View         int64   `json:"view"`         // Current consensus view
	AvgBlockTime float64 `json:"avgBlockTime"` // Average block time (ms)
	MempoolSize  int     `json:"mempoolSize"`  // Pending instruction envelopes
	Validators   int     `json:"validators"`   // Active validator count
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages.
type WSMessage struct {
	Type string      `json:"type"` // "orderbook", "fill", "seat"
	Data interface{} `json:"data"` // Type-specific payload
}

// WSSubscribeRequest is sent by client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:<market>", "fills:<market>"]
}

// OrderbookUpdate is broadcast on every block that touches a market's book.
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
	Height    int64        `json:"height"`
}

// FillUpdate is the "fill" message payload. The server does not broadcast
// it: BroadcastOrderbook's "orderbook:<market>" updates are the only
// WebSocket pushes, so a "fills:<market>" subscription receives nothing.
type FillUpdate struct {
	Type      string `json:"type"` // "fill"
	Market    string `json:"market"`
	Price     float64 `json:"price"`
	BaseQty   uint64 `json:"baseQty"`
	IsBuy     bool   `json:"isBuy"` // taker side
	Timestamp int64  `json:"timestamp"`
	Height    int64  `json:"height"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitInstructionRequest is the payload for POST /api/v1/instructions.
// Instructions are signed EIP-712 envelopes (pkg/crypto.Instruction); see
// host.EncodeEnvelope for the wire layout this gets packed into before
// reaching the mempool.
type SubmitInstructionRequest struct {
	Market      string `json:"market"`      // hex-encoded market address
	Sender      string `json:"sender"`      // hex-encoded UserID
	Nonce       uint64 `json:"nonce"`
	Tag         int    `json:"tag"`
	Body        string `json:"body"`        // hex-encoded instruction body
	Signature   string `json:"signature"`   // hex-encoded 65-byte signature
	IsBaseAsset bool   `json:"isBaseAsset"` // only consulted for Deposit/Withdraw
}

// SubmitInstructionResponse is the response from instruction submission.
type SubmitInstructionResponse struct {
	Status  string `json:"status"`  // "submitted", "rejected"
	Message string `json:"message,omitempty"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
