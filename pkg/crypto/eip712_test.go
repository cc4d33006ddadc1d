package crypto

import "testing"

func TestDeriveUserIDRejectsWrongLength(t *testing.T) {
	if _, err := DeriveUserID(make([]byte, 64)); err == nil {
		t.Fatal("expected error for non-65-byte input")
	}
}

func TestDeriveUserIDDeterministic(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := signer.PublicKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	id1, err := DeriveUserID(pub)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := DeriveUserID(pub)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatal("DeriveUserID should be deterministic over the same pubkey")
	}
}

func TestSignAndVerifyInstruction(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := signer.PublicKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	sender, err := DeriveUserID(pub)
	if err != nil {
		t.Fatal(err)
	}

	eip712Signer := NewEIP712Signer(DefaultDomain())
	var market [32]byte
	market[0] = 0x42

	instr := &Instruction{
		Market: market,
		Sender: sender,
		Nonce:  7,
		Tag:    4,
		Body:   []byte{1, 2, 3, 4},
	}

	sig, err := eip712Signer.SignInstruction(signer, instr)
	if err != nil {
		t.Fatal(err)
	}
	valid, err := eip712Signer.VerifyInstructionSignature(instr, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Fatal("expected valid signature for instruction signed by sender's own key")
	}
}

func TestVerifyInstructionSignatureRejectsTamperedBody(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := signer.PublicKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	sender, err := DeriveUserID(pub)
	if err != nil {
		t.Fatal(err)
	}

	eip712Signer := NewEIP712Signer(DefaultDomain())
	instr := &Instruction{Sender: sender, Nonce: 1, Tag: 4, Body: []byte{1, 2, 3}}
	sig, err := eip712Signer.SignInstruction(signer, instr)
	if err != nil {
		t.Fatal(err)
	}

	tampered := &Instruction{Sender: sender, Nonce: 1, Tag: 4, Body: []byte{9, 9, 9}}
	valid, err := eip712Signer.VerifyInstructionSignature(tampered, sig)
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Fatal("signature over the original body should not validate a tampered body")
	}
}
