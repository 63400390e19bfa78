package serpent

import "testing"

func TestParseRoomEventNormalizesJoinedAndLeft(t *testing.T) {
	for _, wire := range []string{"JOINED", "LEFT"} {
		ev, err := ParseRoomEvent([]byte(`{"type":"` + wire + `","room":{"roomId":"r1","host":"alice"}}`))
		if err != nil {
			t.Fatalf("%s: %v", wire, err)
		}
		if ev.Type != RoomUpdated {
			t.Fatalf("%s normalized to %s, want %s", wire, ev.Type, RoomUpdated)
		}
	}
}

func TestParseRoomEventRejectsUnknownType(t *testing.T) {
	if _, err := ParseRoomEvent([]byte(`{"type":"EXPLODED","room":{"roomId":"r1"}}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if _, err := ParseRoomEvent([]byte(`{"type":"CREATED","room":{}}`)); err == nil {
		t.Fatal("expected error for missing room id")
	}
	if _, err := ParseRoomEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestParseRoomEventClearedNeedsNoRoom(t *testing.T) {
	ev, err := ParseRoomEvent([]byte(`{"type":"CLEARED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != RoomsCleared {
		t.Fatalf("type = %s", ev.Type)
	}
}

func TestParseGameEventRequiresType(t *testing.T) {
	if _, err := ParseGameEvent([]byte(`{"board":{}}`)); err == nil {
		t.Fatal("expected error for event without type")
	}
	ev, err := ParseGameEvent([]byte(`{"type":"START","board":{"width":10}}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != GameStart || len(ev.Board) == 0 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDirectionOpposite(t *testing.T) {
	pairs := map[Direction]Direction{
		DirectionUp:    DirectionDown,
		DirectionDown:  DirectionUp,
		DirectionLeft:  DirectionRight,
		DirectionRight: DirectionLeft,
	}
	for dir, want := range pairs {
		if got := dir.Opposite(); got != want {
			t.Fatalf("%s.Opposite() = %s, want %s", dir, got, want)
		}
	}
	if Direction("DIAGONAL").Valid() {
		t.Fatal("unknown direction reported valid")
	}
}
