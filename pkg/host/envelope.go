package host

import (
	"encoding/binary"
	"fmt"

	"github.com/dropset-labs/dropset/pkg/crypto"
)

// EncodeEnvelope packs a signed instruction into the wire format the
// mempool classifies by leading tag byte and a block payload carries:
//
//	tag:1 | market:32 | sender:32 | nonce:8 | isBaseAsset:1 |
//	bodyLen:2 | body:N | sigLen:1 | signature:M | coSigLen:1 | coSignature:K
//
// Keeping tag first lets mempool.ClassifyRaw sniff b[0] without decoding
// the rest of the envelope.
func EncodeEnvelope(instr *crypto.Instruction, signature []byte, isBaseAsset bool, coSignature []byte) ([]byte, error) {
	if len(instr.Body) > 1<<16-1 {
		return nil, fmt.Errorf("instruction body too large: %d bytes", len(instr.Body))
	}
	if len(signature) > 255 {
		return nil, fmt.Errorf("signature too large: %d bytes", len(signature))
	}
	if len(coSignature) > 255 {
		return nil, fmt.Errorf("co-signature too large: %d bytes", len(coSignature))
	}

	out := make([]byte, 0, 1+32+32+8+1+2+len(instr.Body)+1+len(signature)+1+len(coSignature))
	out = append(out, instr.Tag)
	out = append(out, instr.Market[:]...)
	out = append(out, instr.Sender[:]...)

	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], instr.Nonce)
	out = append(out, nonceBuf[:]...)

	var flag byte
	if isBaseAsset {
		flag = 1
	}
	out = append(out, flag)

	var bodyLenBuf [2]byte
	binary.LittleEndian.PutUint16(bodyLenBuf[:], uint16(len(instr.Body)))
	out = append(out, bodyLenBuf[:]...)
	out = append(out, instr.Body...)

	out = append(out, byte(len(signature)))
	out = append(out, signature...)

	out = append(out, byte(len(coSignature)))
	out = append(out, coSignature...)

	return out, nil
}

// DecodeEnvelope is the inverse of EncodeEnvelope.
func DecodeEnvelope(b []byte) (instr *crypto.Instruction, signature []byte, isBaseAsset bool, coSignature []byte, err error) {
	const fixed = 1 + 32 + 32 + 8 + 1 + 2
	if len(b) < fixed {
		return nil, nil, false, nil, fmt.Errorf("envelope too short: %d bytes", len(b))
	}

	instr = &crypto.Instruction{Tag: b[0]}
	copy(instr.Market[:], b[1:33])
	copy(instr.Sender[:], b[33:65])
	instr.Nonce = binary.LittleEndian.Uint64(b[65:73])
	isBaseAsset = b[73] != 0
	bodyLen := int(binary.LittleEndian.Uint16(b[74:76]))

	off := fixed
	if len(b) < off+bodyLen+1 {
		return nil, nil, false, nil, fmt.Errorf("envelope truncated in body")
	}
	instr.Body = append([]byte(nil), b[off:off+bodyLen]...)
	off += bodyLen

	sigLen := int(b[off])
	off++
	if len(b) < off+sigLen+1 {
		return nil, nil, false, nil, fmt.Errorf("envelope truncated in signature")
	}
	signature = append([]byte(nil), b[off:off+sigLen]...)
	off += sigLen

	coSigLen := int(b[off])
	off++
	if len(b) < off+coSigLen {
		return nil, nil, false, nil, fmt.Errorf("envelope truncated in co-signature")
	}
	coSignature = append([]byte(nil), b[off:off+coSigLen]...)

	return instr, signature, isBaseAsset, coSignature, nil
}
