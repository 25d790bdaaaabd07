package protocol

import (
	"encoding/json"
	"testing"
)

func TestMarshalRoundBetsFinalizedEnvelope(t *testing.T) {
	evt := RoundBetsFinalizedEvent{
		Envelope: Envelope{
			Type:      TypeRoundBetsFinalized,
			HandID:    "hand-1",
			EventSeq:  4,
			Timestamp: 1000,
		},
		PlayerBets: map[string]int{"p1": 20, "p2": 20},
		PotTotal:   40,
	}

	data, err := Marshal(&evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, field := range []string{"type", "hand_id", "event_seq", "timestamp", "player_bets", "pot_total"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("expected field %q in envelope, got %v", field, decoded)
		}
	}
	if decoded["type"] != TypeRoundBetsFinalized {
		t.Errorf("type mismatch: got %v", decoded["type"])
	}
}

func TestDecodeClientActionMessage(t *testing.T) {
	raw := []byte(`{"type":"action","hand_id":"h1","action":"RAISE","amount":40}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Action == nil {
		t.Fatal("expected Action to be populated")
	}
	if msg.Action.HandID != "h1" || msg.Action.Action != ActionRaise || *msg.Action.Amount != 40 {
		t.Errorf("unexpected decoded action: %+v", msg.Action)
	}
}

func TestDecodeClientAnimationDone(t *testing.T) {
	raw := []byte(`{"type":"animation_done","hand_id":"h1","event_seq":7}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.AnimationDone == nil || msg.AnimationDone.EventSeq != 7 {
		t.Errorf("unexpected decoded animation_done: %+v", msg.AnimationDone)
	}
}

func TestDecodeClientMessageRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"type":"teleport","hand_id":"h1"}`)

	if _, err := DecodeClientMessage(raw); err != ErrUnknownMessageType {
		t.Errorf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestDecodeClientMessageRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"type":"action","hand_id":"h1","action":"FOLD","sneaky_extra":1}`)

	if _, err := DecodeClientMessage(raw); err == nil {
		t.Error("expected error for unknown field, got nil")
	}
}

func TestDecodeClientMessageRejectsMalformedJSON(t *testing.T) {
	raw := []byte(`{"type": "action",`)

	if _, err := DecodeClientMessage(raw); err == nil {
		t.Error("expected error for malformed JSON, got nil")
	}
}

func TestShowdownHandsRevealedRoundTrip(t *testing.T) {
	evt := ShowdownHandsRevealedEvent{
		Envelope: Envelope{Type: TypeShowdownHandsRevealed, HandID: "h2", EventSeq: 9, Timestamp: 42},
		PlayerHands: []PlayerHandView{
			{Seat: 0, PlayerID: "p1", HoleCards: []string{"As", "Kh"}, HandRank: "Pair of Aces"},
		},
	}

	data, err := Marshal(&evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ShowdownHandsRevealedEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.PlayerHands) != 1 || decoded.PlayerHands[0].HandRank != "Pair of Aces" {
		t.Errorf("unexpected round trip: %+v", decoded)
	}
}
