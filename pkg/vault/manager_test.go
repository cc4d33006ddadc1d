package vault

import (
	"os"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "vault-manager-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerRecordRejectsReplayedNonce(t *testing.T) {
	m := newTestManager(t)
	var market, user [32]byte
	user[0] = 0x01

	r := Record{Market: market, User: user, IsDeposit: true, Amount: 500, Nonce: 7, Timestamp: 1}
	accepted, err := m.Record(r)
	if err != nil {
		t.Fatal(err)
	}
	if !accepted {
		t.Fatal("first sighting of a nonce should be accepted")
	}

	accepted, err = m.Record(r)
	if err != nil {
		t.Fatal(err)
	}
	if accepted {
		t.Fatal("replayed nonce should be rejected")
	}
}

func TestManagerRecordTracksNoncesPerUser(t *testing.T) {
	m := newTestManager(t)
	var market, u1, u2 [32]byte
	u1[0] = 0x01
	u2[0] = 0x02

	accepted, err := m.Record(Record{Market: market, User: u1, IsDeposit: true, Amount: 1, Nonce: 1, Timestamp: 1})
	if err != nil || !accepted {
		t.Fatalf("u1 nonce 1 should be accepted: accepted=%v err=%v", accepted, err)
	}
	accepted, err = m.Record(Record{Market: market, User: u2, IsDeposit: true, Amount: 1, Nonce: 1, Timestamp: 1})
	if err != nil || !accepted {
		t.Fatalf("u2's nonce 1 is independent of u1's and should be accepted: accepted=%v err=%v", accepted, err)
	}
}

func TestManagerHistoryReflectsAcceptedRecords(t *testing.T) {
	m := newTestManager(t)
	var market, user [32]byte
	user[0] = 0x01

	if _, err := m.Record(Record{Market: market, User: user, IsDeposit: true, Amount: 100, Nonce: 1, Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Record(Record{Market: market, User: user, IsDeposit: false, Amount: 50, Nonce: 2, Timestamp: 2}); err != nil {
		t.Fatal(err)
	}

	history, err := m.History(market, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
}
