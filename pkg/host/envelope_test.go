package host

import (
	"bytes"
	"testing"

	"github.com/dropset-labs/dropset/pkg/crypto"
	"github.com/dropset-labs/dropset/pkg/engine"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	instr := &crypto.Instruction{
		Market: [32]byte{1, 2, 3},
		Sender: [32]byte{4, 5, 6},
		Nonce:  42,
		Tag:    engine.TagPostOrder,
		Body:   []byte{0xde, 0xad, 0xbe, 0xef},
	}
	sig := bytes.Repeat([]byte{0xAB}, 65)
	coSig := bytes.Repeat([]byte{0xCD}, 96)

	enc, err := EncodeEnvelope(instr, sig, true, coSig)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if enc[0] != engine.TagPostOrder {
		t.Fatalf("leading byte = %d, want tag %d", enc[0], engine.TagPostOrder)
	}

	gotInstr, gotSig, gotBase, gotCoSig, err := DecodeEnvelope(enc)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if gotInstr.Market != instr.Market || gotInstr.Sender != instr.Sender ||
		gotInstr.Nonce != instr.Nonce || gotInstr.Tag != instr.Tag {
		t.Fatalf("decoded instruction mismatch: %+v", gotInstr)
	}
	if !bytes.Equal(gotInstr.Body, instr.Body) {
		t.Fatalf("decoded body = %x, want %x", gotInstr.Body, instr.Body)
	}
	if !bytes.Equal(gotSig, sig) {
		t.Fatalf("decoded signature mismatch")
	}
	if !gotBase {
		t.Fatalf("decoded isBaseAsset = false, want true")
	}
	if !bytes.Equal(gotCoSig, coSig) {
		t.Fatalf("decoded co-signature mismatch")
	}
}

func TestEnvelopeRoundTripNoCoSignature(t *testing.T) {
	instr := &crypto.Instruction{Tag: engine.TagCancelOrder, Body: []byte{1}}
	enc, err := EncodeEnvelope(instr, []byte{0x01, 0x02}, false, nil)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	_, gotSig, gotBase, gotCoSig, err := DecodeEnvelope(enc)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if len(gotCoSig) != 0 {
		t.Fatalf("expected empty co-signature, got %x", gotCoSig)
	}
	if gotBase {
		t.Fatalf("expected isBaseAsset = false")
	}
	if !bytes.Equal(gotSig, []byte{0x01, 0x02}) {
		t.Fatalf("signature mismatch")
	}
}

func TestDecodeEnvelopeRejectsTruncated(t *testing.T) {
	if _, _, _, _, err := DecodeEnvelope([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding truncated envelope")
	}
}
