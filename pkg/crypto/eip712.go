package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data.
// This prevents replay attacks across different chains/markets.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Instruction is the typed-data shape users sign in their wallets for any of
// the nine dispatch tags (§6.1). Tag and Body carry the same tag:u8|body
// bytes that engine.Dispatch consumes; signing wraps them with a market,
// sender and nonce so a signature can't be replayed against a different
// market or resubmitted out of order.
type Instruction struct {
	Market [32]byte
	Sender [32]byte
	Nonce  uint64
	Tag    uint8
	Body   []byte
}

// EIP712Signer handles EIP-712 typed data signing for instructions.
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain.
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "dropset",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

var instructionTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Instruction": []apitypes.Type{
		{Name: "market", Type: "bytes32"},
		{Name: "sender", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "tag", Type: "uint8"},
		{Name: "body", Type: "bytes"},
	},
}

func (e *EIP712Signer) typedData(instr *Instruction) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       instructionTypes,
		PrimaryType: "Instruction",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"market": instr.Market[:],
			"sender": instr.Sender[:],
			"nonce":  fmt.Sprintf("%d", instr.Nonce),
			"tag":    fmt.Sprintf("%d", instr.Tag),
			"body":   instr.Body,
		},
	}
}

// HashInstruction hashes an instruction envelope according to EIP-712,
// returning the digest that should be signed.
func (e *EIP712Signer) HashInstruction(instr *Instruction) ([]byte, error) {
	typedData := e.typedData(instr)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	digest := crypto.Keccak256Hash(rawData)
	return digest.Bytes(), nil
}

// SignInstruction signs an instruction envelope and returns the signature.
func (e *EIP712Signer) SignInstruction(signer *Signer, instr *Instruction) ([]byte, error) {
	hash, err := e.HashInstruction(instr)
	if err != nil {
		return nil, fmt.Errorf("failed to hash instruction: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyInstructionSignature reports whether signature was produced by the
// key deriving to instr.Sender (via DeriveUserID over the recovered pubkey).
func (e *EIP712Signer) VerifyInstructionSignature(instr *Instruction, signature []byte) (bool, error) {
	hash, err := e.HashInstruction(instr)
	if err != nil {
		return false, fmt.Errorf("failed to hash instruction: %w", err)
	}

	pubBytes, err := recoverUncompressedPub(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover pubkey: %w", err)
	}
	derived, err := DeriveUserID(pubBytes)
	if err != nil {
		return false, err
	}
	return derived == instr.Sender, nil
}

// recoverUncompressedPub recovers the 65-byte uncompressed pubkey that
// produced signature over hash.
func recoverUncompressedPub(hash, signature []byte) ([]byte, error) {
	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	return crypto.Ecrecover(hash, signature)
}

// InstructionToJSON converts an instruction to JSON for wallet signing via
// eth_signTypedData_v4.
func (e *EIP712Signer) InstructionToJSON(instr *Instruction) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"Instruction": []map[string]string{
				{"name": "market", "type": "bytes32"},
				{"name": "sender", "type": "bytes32"},
				{"name": "nonce", "type": "uint256"},
				{"name": "tag", "type": "uint8"},
				{"name": "body", "type": "bytes"},
			},
		},
		"primaryType": "Instruction",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"market": fmt.Sprintf("0x%x", instr.Market),
			"sender": fmt.Sprintf("0x%x", instr.Sender),
			"nonce":  instr.Nonce,
			"tag":    instr.Tag,
			"body":   fmt.Sprintf("0x%x", instr.Body),
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
