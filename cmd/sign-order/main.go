// Command sign-order builds, signs and encodes a single instruction
// envelope, the same shape a wallet or market-making bot would submit to
// POST /api/v1/instructions. It demonstrates the signing flow end to end:
// generate a key, build an instruction, sign it EIP-712 style, verify the
// signature locally, then print the hex-encoded envelope.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/dropset-labs/dropset/pkg/crypto"
	"github.com/dropset-labs/dropset/pkg/engine"
	"github.com/dropset-labs/dropset/pkg/host"
)

func main() {
	tagName := flag.String("tag", "deposit", "instruction kind: deposit, withdraw, post, cancel")
	marketHex := flag.String("market", "", "hex-encoded 32-byte market address (defaults to zero market for demo purposes)")
	nonce := flag.Uint64("nonce", 1, "instruction nonce")
	amount := flag.Uint64("amount", 1_000_000, "deposit/withdraw amount in atoms")
	isBase := flag.Bool("base", true, "deposit/withdraw the base asset (false for quote)")
	mantissa := flag.Uint("mantissa", 50_000_000, "price mantissa (post order)")
	biasedExp := flag.Uint("exp", 16, "price biased exponent (post order)")
	isBid := flag.Bool("bid", true, "post order side (post order)")
	encodedPrice := flag.Uint("price", 0, "encoded price to cancel (cancel order)")
	flag.Parse()

	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	pubBytes, err := signer.PublicKeyBytes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "public key: %v\n", err)
		os.Exit(1)
	}
	sender, err := crypto.DeriveUserID(pubBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive sender: %v\n", err)
		os.Exit(1)
	}

	var market [32]byte
	if *marketHex != "" {
		raw, err := hex.DecodeString(trimHexPrefix(*marketHex))
		if err != nil || len(raw) != 32 {
			fmt.Fprintf(os.Stderr, "market must be a 32-byte hex string\n")
			os.Exit(1)
		}
		copy(market[:], raw)
	}

	tag, body, err := buildBody(*tagName, *amount, *mantissa, *biasedExp, *isBid, uint32(*encodedPrice))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	instr := &crypto.Instruction{Market: market, Sender: sender, Nonce: *nonce, Tag: tag, Body: body}

	fmt.Println("Instruction:")
	fmt.Printf("  Kind:   %s\n", *tagName)
	fmt.Printf("  Market: %x\n", instr.Market)
	fmt.Printf("  Sender: %x\n", instr.Sender)
	fmt.Printf("  Nonce:  %d\n\n", instr.Nonce)

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignInstruction(signer, instr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	fmt.Println("Verifying signature...")
	ok, err := eip712Signer.VerifyInstructionSignature(instr, signature)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("signature INVALID")
		os.Exit(1)
	}
	fmt.Println("signature valid")
	fmt.Println()

	envelope, err := host.EncodeEnvelope(instr, signature, *isBase, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode envelope: %v\n", err)
		os.Exit(1)
	}

	instrJSON, err := eip712Signer.InstructionToJSON(instr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "instruction json: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("To submit this instruction:")
	fmt.Println("  POST http://localhost:8080/api/v1/instructions")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(instrJSON)
	fmt.Println()
	fmt.Printf("Encoded envelope (%d bytes): 0x%x\n", len(envelope), envelope)
}

func buildBody(kind string, amount uint64, mantissa, biasedExp uint, isBid bool, encodedPrice uint32) (byte, []byte, error) {
	switch kind {
	case "deposit":
		body := make([]byte, 8+4)
		binary.LittleEndian.PutUint64(body[0:], amount)
		binary.LittleEndian.PutUint32(body[8:], engine.NIL)
		return engine.TagDeposit, body, nil

	case "withdraw":
		body := make([]byte, 8+4)
		binary.LittleEndian.PutUint64(body[0:], amount)
		binary.LittleEndian.PutUint32(body[8:], engine.NIL)
		return engine.TagWithdraw, body, nil

	case "post":
		body := make([]byte, 4+8+1+1+1+4)
		binary.LittleEndian.PutUint32(body[0:], uint32(mantissa))
		binary.LittleEndian.PutUint64(body[4:], amount)
		body[12] = byte(biasedExp)
		body[13] = byte(biasedExp)
		if isBid {
			body[14] = 1
		}
		binary.LittleEndian.PutUint32(body[15:], engine.NIL)
		return engine.TagPostOrder, body, nil

	case "cancel":
		body := make([]byte, 4+1+4)
		binary.LittleEndian.PutUint32(body[0:], encodedPrice)
		if isBid {
			body[4] = 1
		}
		binary.LittleEndian.PutUint32(body[5:], engine.NIL)
		return engine.TagCancelOrder, body, nil

	default:
		return 0, nil, fmt.Errorf("unknown instruction kind %q (want deposit, withdraw, post, cancel)", kind)
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
