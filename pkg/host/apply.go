// Package host wires together signature verification, market lookup, replay
// protection, and engine dispatch into the verify -> nonce check -> validate
// -> mutate -> log pipeline apply_signed_tx.go runs for perp orders,
// generalized here to all nine dispatch tags (spec.md §6.1).
package host

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropset-labs/dropset/pkg/crypto"
	"github.com/dropset-labs/dropset/pkg/engine"
	"github.com/dropset-labs/dropset/pkg/market"
	"github.com/dropset-labs/dropset/pkg/vault"
)

// Host applies signed instruction envelopes against a market registry.
type Host struct {
	Markets *market.Registry
	Vault   *vault.Manager
	Signer  *crypto.EIP712Signer
	Logger  *zap.Logger

	// WithdrawalCoSigner, when set, requires a threshold co-signature over
	// the withdrawal's attestation message before a Withdraw instruction is
	// dispatched. nil skips the co-sign gate entirely.
	WithdrawalCoSigner crypto.ThresholdSigner

	mu         sync.Mutex
	seenNonces map[[32]byte]uint64 // sender -> highest accepted envelope nonce
}

// New builds a Host. signer, markets, and vaultMgr must be non-nil;
// coSigner may be nil to skip withdrawal co-signing.
func New(markets *market.Registry, vaultMgr *vault.Manager, signer *crypto.EIP712Signer, coSigner crypto.ThresholdSigner, logger *zap.Logger) *Host {
	return &Host{
		Markets:            markets,
		Vault:              vaultMgr,
		Signer:             signer,
		WithdrawalCoSigner: coSigner,
		Logger:             logger,
		seenNonces:         make(map[[32]byte]uint64),
	}
}

// Result reports the outcome of a successfully applied instruction.
type Result struct {
	Market [32]byte
	Sender [32]byte
	Tag    uint8

	// Events holds every event buffer segment the instruction flushed
	// (spec.md §4.7), in flush order. Each segment is itself a complete
	// dispatcher_tag|header_event|event* blob ready to append to an
	// instruction log. Empty when the instruction emitted nothing.
	Events [][]byte
}

// eventCollector implements engine.Dispatcher by appending each flushed
// buffer to an in-memory slice, standing in for the self-invocation a
// runtime with real cross-program calls would perform (events.go's doc
// comment on Dispatcher).
type eventCollector struct {
	segments [][]byte
}

func (c *eventCollector) Dispatch(data []byte) error {
	c.segments = append(c.segments, append([]byte(nil), data...))
	return nil
}

// Apply verifies instr's EIP-712 signature, rejects replayed envelope
// nonces, resolves the target market, optionally checks a withdrawal
// co-signature, and dispatches the instruction body into the matching
// engine. isBaseAsset resolves which of the two vault token accounts a
// Deposit or Withdraw moves (engine.Dispatch's doc comment explains why the
// wire body itself can't carry this); it's ignored for every other tag.
// coSignature is only consulted for TagWithdraw when a WithdrawalCoSigner
// is configured.
func (h *Host) Apply(instr *crypto.Instruction, signature []byte, isBaseAsset bool, coSignature []byte) (Result, error) {
	ok, err := h.Signer.VerifyInstructionSignature(instr, signature)
	if err != nil {
		h.Logger.Warn("[host] signature verification error", zap.Error(err))
		return Result{}, fmt.Errorf("verify instruction: %w", err)
	}
	if !ok {
		h.Logger.Warn("[host] invalid instruction signature",
			zap.Uint8("tag", instr.Tag), zap.Binary("sender", instr.Sender[:]))
		return Result{}, fmt.Errorf("invalid signature for sender %x", instr.Sender)
	}

	if !h.admitNonce(instr.Sender, instr.Nonce) {
		h.Logger.Warn("[host] nonce too low, replay rejected",
			zap.Uint8("tag", instr.Tag), zap.Uint64("nonce", instr.Nonce))
		return Result{}, fmt.Errorf("nonce %d already seen for sender %x", instr.Nonce, instr.Sender)
	}

	entry, err := h.Markets.Get(instr.Market)
	if err != nil {
		h.Logger.Warn("[host] unknown market", zap.Binary("market", instr.Market[:]))
		return Result{}, fmt.Errorf("resolve market: %w", err)
	}

	if instr.Tag == engine.TagWithdraw && h.WithdrawalCoSigner != nil {
		if !h.WithdrawalCoSigner.Verify(coSignature, withdrawalAttestation(instr)) {
			h.Logger.Warn("[host] withdrawal co-signature rejected",
				zap.Binary("sender", instr.Sender[:]), zap.Uint64("nonce", instr.Nonce))
			return Result{}, fmt.Errorf("withdrawal co-signature rejected for sender %x", instr.Sender)
		}
	}

	data := append([]byte{instr.Tag}, instr.Body...)
	collector := &eventCollector{}
	if err := engine.Dispatch(entry.Region, engine.UserID(instr.Sender), isBaseAsset, data, instr.Market, collector); err != nil {
		h.Logger.Warn("[host] instruction rejected", zap.Uint8("tag", instr.Tag), zap.Error(err))
		return Result{}, fmt.Errorf("dispatch: %w", err)
	}

	if instr.Tag == engine.TagDeposit || instr.Tag == engine.TagWithdraw {
		if err := h.recordVaultMovement(instr, isBaseAsset); err != nil {
			// The engine state mutation already succeeded; the ledger entry
			// is an audit trail, not a gate, so a failure here is logged
			// and swallowed rather than unwound.
			h.Logger.Error("[host] vault ledger append failed after dispatch", zap.Error(err))
		}
	}

	h.Logger.Info("[host] instruction accepted",
		zap.Uint8("tag", instr.Tag),
		zap.Binary("market", instr.Market[:]),
		zap.Binary("sender", instr.Sender[:]),
		zap.Uint64("nonce", instr.Nonce))

	return Result{Market: instr.Market, Sender: instr.Sender, Tag: instr.Tag, Events: collector.segments}, nil
}

// admitNonce accepts instruction nonces that strictly increase per sender,
// mirroring apply_signed_tx.go's "nonce <= account nonce is a replay" check.
func (h *Host) admitNonce(sender [32]byte, nonce uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if last, ok := h.seenNonces[sender]; ok && nonce <= last {
		return false
	}
	h.seenNonces[sender] = nonce
	return true
}

// recordVaultMovement decodes a Deposit/Withdraw body's amount field and
// appends an audit record to the vault ledger.
func (h *Host) recordVaultMovement(instr *crypto.Instruction, isBaseAsset bool) error {
	if len(instr.Body) < 8+4 {
		return fmt.Errorf("short deposit/withdraw body: %d bytes", len(instr.Body))
	}
	amount := binary.LittleEndian.Uint64(instr.Body[0:])
	_, err := h.Vault.Record(vault.Record{
		Market:    instr.Market,
		User:      instr.Sender,
		IsBase:    isBaseAsset,
		IsDeposit: instr.Tag == engine.TagDeposit,
		Amount:    amount,
		Nonce:     instr.Nonce,
		Timestamp: time.Now().Unix(),
	})
	return err
}

// withdrawalAttestation is the message a withdrawal co-signer attests to:
// market, sender, nonce, and the raw withdraw body, in that order.
func withdrawalAttestation(instr *crypto.Instruction) []byte {
	msg := make([]byte, 0, 32+32+8+len(instr.Body))
	msg = append(msg, instr.Market[:]...)
	msg = append(msg, instr.Sender[:]...)
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], instr.Nonce)
	msg = append(msg, nonceBuf[:]...)
	msg = append(msg, instr.Body...)
	return msg
}
