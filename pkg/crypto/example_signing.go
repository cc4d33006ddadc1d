package crypto

import (
	"encoding/binary"
	"fmt"
)

// buildPostOrderBody encodes a PostOrder instruction body per §6.1:
// mantissa:u32, base_scalar:u64, base_exp_biased:u8, quote_exp_biased:u8,
// is_bid:u8, seat_hint:u32.
func buildPostOrderBody(mantissa uint32, baseScalar uint64, isBid bool, seatHint uint32) []byte {
	body := make([]byte, 4+8+1+1+1+4)
	binary.LittleEndian.PutUint32(body[0:], mantissa)
	binary.LittleEndian.PutUint64(body[4:], baseScalar)
	body[12], body[13] = 16, 16
	if isBid {
		body[14] = 1
	}
	binary.LittleEndian.PutUint32(body[15:], seatHint)
	return body
}

// ExampleSignOrder demonstrates signing a PostOrder instruction with EIP-712.
func ExampleSignOrder() {
	signer, err := GenerateKey()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Generated address: %s\n", signer.Address().Hex())

	pubBytes, err := signer.PublicKeyBytes()
	if err != nil {
		panic(err)
	}
	sender, err := DeriveUserID(pubBytes)
	if err != nil {
		panic(err)
	}

	eip712Signer := NewEIP712Signer(DefaultDomain())
	var market [32]byte
	market[0] = 0xAA

	instr := &Instruction{
		Market: market,
		Sender: sender,
		Nonce:  1,
		Tag:    4, // TagPostOrder
		Body:   buildPostOrderBody(50_000_000, 1_000, true, 0xFFFFFFFF),
	}

	signature, err := eip712Signer.SignInstruction(signer, instr)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Instruction signed! Signature: 0x%x\n", signature)

	valid, err := eip712Signer.VerifyInstructionSignature(instr, signature)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Signature valid: %v\n", valid)

	json, err := eip712Signer.InstructionToJSON(instr)
	if err != nil {
		panic(err)
	}
	fmt.Printf("EIP-712 JSON for wallet signing:\n%s\n", json)
}

// ExampleVerifyTransaction demonstrates verifying a signed instruction
// envelope the way an API gateway would before it reaches consensus.
func ExampleVerifyTransaction() {
	signer, _ := GenerateKey()
	pubBytes, _ := signer.PublicKeyBytes()
	sender, _ := DeriveUserID(pubBytes)

	eip712Signer := NewEIP712Signer(DefaultDomain())
	var market [32]byte
	market[0] = 0xBB

	instr := &Instruction{
		Market: market,
		Sender: sender,
		Nonce:  42,
		Tag:    7, // TagMarketOrder
		Body:   make([]byte, 10),
	}

	signature, _ := eip712Signer.SignInstruction(signer, instr)

	fmt.Println("gateway: verifying instruction signature...")
	valid, err := eip712Signer.VerifyInstructionSignature(instr, signature)
	if err != nil {
		fmt.Printf("verification error: %v\n", err)
		return
	}
	if !valid {
		fmt.Println("REJECTED: signature does not match claimed sender")
		return
	}
	fmt.Println("accepted, forwarding to mempool")
}

// ExampleReplayProtection demonstrates nonce-based replay protection
// layered on top of signature verification.
func ExampleReplayProtection() {
	signer, _ := GenerateKey()
	pubBytes, _ := signer.PublicKeyBytes()
	sender, _ := DeriveUserID(pubBytes)
	eip712Signer := NewEIP712Signer(DefaultDomain())

	var market [32]byte
	instr1 := &Instruction{Market: market, Sender: sender, Nonce: 1, Tag: 4, Body: buildPostOrderBody(50_000_000, 100, true, 0xFFFFFFFF)}
	sig1, _ := eip712Signer.SignInstruction(signer, instr1)

	usedNonces := make(map[[32]byte]map[uint64]bool)
	usedNonces[sender] = make(map[uint64]bool)

	fmt.Println("processing instruction with nonce 1...")
	if usedNonces[sender][instr1.Nonce] {
		fmt.Println("REJECTED: nonce already used")
	} else if valid, _ := eip712Signer.VerifyInstructionSignature(instr1, sig1); valid {
		fmt.Println("accepted")
		usedNonces[sender][instr1.Nonce] = true
	}

	fmt.Println("attacker replays the same instruction...")
	if usedNonces[sender][instr1.Nonce] {
		fmt.Println("REJECTED: nonce already used, replay prevented")
	}

	instr2 := &Instruction{Market: market, Sender: sender, Nonce: 2, Tag: 5, Body: make([]byte, 9)}
	sig2, _ := eip712Signer.SignInstruction(signer, instr2)

	fmt.Println("processing new instruction with nonce 2...")
	if usedNonces[sender][instr2.Nonce] {
		fmt.Println("REJECTED: nonce already used")
	} else if valid, _ := eip712Signer.VerifyInstructionSignature(instr2, sig2); valid {
		fmt.Println("accepted")
		usedNonces[sender][instr2.Nonce] = true
	}
}
