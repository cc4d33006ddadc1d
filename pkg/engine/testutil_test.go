package engine

import "testing"

func newTestRegion(t *testing.T, numSectors int) *Region {
	t.Helper()
	data := make([]byte, HeaderSize+numSectors*SectorSize)
	r, err := InitRegion(data, 1, Mint{0xAA}, Mint{0xBB})
	if err != nil {
		t.Fatalf("InitRegion: %v", err)
	}
	return r
}

func testUser(b byte) UserID {
	var u UserID
	u[0] = b
	return u
}

// postTestOrder posts an order at a simple price (mantissa, exponents fixed
// at bias so the conversion math is exact integers) for the given base size.
func postTestOrder(t *testing.T, r *Region, seatHint uint32, user UserID, mantissa uint32, baseScalar uint64, isBid bool) (uint32, EncodedPrice) {
	t.Helper()
	sector, encoded, err := PostOrder(r, PostOrderParams{
		SeatHint:       seatHint,
		User:           user,
		Mantissa:       mantissa,
		BaseScalar:     baseScalar,
		BaseExpBiased:  16,
		QuoteExpBiased: 16,
		IsBid:          isBid,
	})
	if err != nil {
		t.Fatalf("PostOrder: %v", err)
	}
	return sector, encoded
}
