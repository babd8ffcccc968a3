// Copyright 2025 Certen Protocol

package incident

import (
	"os"
	"testing"
	"time"
)

func TestHandleEventCreatesChainAndThreadsPrevID(t *testing.T) {
	l := NewLedger(t.TempDir(), nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	incidentID, receiptID1, err := l.HandleEvent("guardian-1", map[string]interface{}{"ref_id": "inc-42", "kind": "alert"}, now)
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if incidentID != "inc-42" {
		t.Errorf("incident id mismatch: got %s", incidentID)
	}

	_, receiptID2, err := l.HandleEvent("guardian-1", map[string]interface{}{"ref_id": "inc-42", "kind": "update"}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second event: %v", err)
	}

	chain := l.GetIncident("inc-42")
	if chain == nil || len(chain.Receipts) != 2 {
		t.Fatalf("expected chain of 2 receipts, got %+v", chain)
	}
	if chain.Receipts[0].ID != receiptID1 {
		t.Errorf("first receipt id mismatch")
	}
	prevID, _ := chain.Receipts[1].Extra["prev_id"].(string)
	if prevID != receiptID1 {
		t.Errorf("expected second receipt's prev_id to be %s, got %s", receiptID1, prevID)
	}
	_ = receiptID2
}

func TestHandleEventSynthesizesIncidentIDWhenAbsent(t *testing.T) {
	l := NewLedger(t.TempDir(), nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	incidentID, _, err := l.HandleEvent("guardian-1", map[string]interface{}{"kind": "alert"}, now)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if incidentID == "" {
		t.Error("expected a synthesized incident id")
	}
}

func TestProofAggregationEveryFifthReceipt(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(dir, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, _, err := l.HandleEvent("guardian-1", map[string]interface{}{"ref_id": "inc-agg", "n": i}, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir + "/receipts/infrastructure/proofs")
	if err != nil {
		t.Fatalf("read proofs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one proof aggregate after 5 receipts, got %d", len(entries))
	}
}

func TestRebuildIndexIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(dir, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l.HandleEvent("guardian-1", map[string]interface{}{"ref_id": "inc-a", "n": 1}, now)
	l.HandleEvent("guardian-1", map[string]interface{}{"ref_id": "inc-a", "n": 2}, now.Add(time.Second))
	l.HandleEvent("guardian-1", map[string]interface{}{"kind": "orphaned"}, now.Add(2*time.Second))

	rebuilt := NewLedger(dir, nil)
	if err := rebuilt.RebuildIndex(); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	first := snapshotChainSizes(rebuilt)

	if err := rebuilt.RebuildIndex(); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	second := snapshotChainSizes(rebuilt)

	if len(first) != len(second) {
		t.Fatalf("chain count changed across rebuilds: %d vs %d", len(first), len(second))
	}
	for id, n := range first {
		if second[id] != n {
			t.Errorf("chain %s size changed: %d vs %d", id, n, second[id])
		}
	}
	if chain := rebuilt.GetIncident("inc-a"); chain == nil || len(chain.Receipts) != 2 {
		t.Errorf("expected inc-a to have 2 receipts after rebuild, got %+v", chain)
	}
}

func snapshotChainSizes(l *Ledger) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.chains))
	for id, c := range l.chains {
		out[id] = len(c.Receipts)
	}
	return out
}

