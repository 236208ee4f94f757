package chain

import (
	"testing"

	"github.com/eld-core/ingestor/internal/event"
)

func TestContentHash_Deterministic(t *testing.T) {
	e := &event.Event{
		Device:       "dev-1",
		EventType:    event.TypeDutyStatusChange,
		EventSubType: 1,
		EventDate:    "073026",
		EventTime:    "140000",
		SequenceID:   5,
	}

	h1 := ContentHash(e)
	h2 := ContentHash(e)

	if h1 != h2 {
		t.Fatalf("ContentHash not deterministic: %s != %s", h1, h2)
	}

	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestContentHash_DiffersOnSequence(t *testing.T) {
	base := &event.Event{
		Device: "dev-1", EventType: event.TypeDutyStatusChange, EventSubType: 1,
		EventDate: "073026", EventTime: "140000", SequenceID: 5,
	}
	other := *base
	other.SequenceID = 6

	if ContentHash(base) == ContentHash(&other) {
		t.Error("expected different sequence ids to produce different content hashes")
	}
}

func TestGenesisHash_ScopedToDeviceAndPeriod(t *testing.T) {
	a := GenesisHash(event.Scope{Device: "dev-1", LogPeriod: "2026-07-30"})
	b := GenesisHash(event.Scope{Device: "dev-2", LogPeriod: "2026-07-30"})

	if a == b {
		t.Error("expected genesis hash to differ across devices")
	}
}

func TestChainHash_ChainsFromPrevious(t *testing.T) {
	content := "abc"
	h1 := ChainHash(content, "genesis")
	h2 := ChainHash(content, h1)

	if h1 == h2 {
		t.Error("expected chain hash to depend on previous chain hash")
	}
}
