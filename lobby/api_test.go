package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"serpentia/serpent"
)

func TestFetchRoomsCarriesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lobby/rooms" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]serpent.Room{{RoomID: "R1", Host: "alice"}})
	}))
	defer srv.Close()

	api := NewAPI(Config{BaseURL: srv.URL, Token: "tok"})
	rooms, err := api.FetchRooms(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != "R1" {
		t.Fatalf("rooms = %v", rooms)
	}
}

func TestJoinFullRoomRejectedByCollaborator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "room is full", http.StatusConflict)
	}))
	defer srv.Close()

	api := NewAPI(Config{BaseURL: srv.URL})
	_, err := api.JoinRoom(context.Background(), "R1")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusConflict {
		t.Fatalf("status = %d", statusErr.Code)
	}
}

func TestJoinGatesLocallyOnFullRoom(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rec := NewReconciler(nil)
	rec.Apply(serpent.RoomEvent{Type: serpent.RoomCreated, Room: serpent.Room{
		RoomID:         "R1",
		MaxPlayers:     2,
		CurrentPlayers: []string{"alice", "bob"},
	}})

	api := NewAPI(Config{BaseURL: srv.URL})
	if _, err := Join(context.Background(), api, rec, "R1"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if called {
		t.Fatal("join hit the server despite the local full gate")
	}
}

func TestCreateRoomPostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req.Host != "alice" || req.MaxPlayers != 4 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(serpent.Room{
			RoomID: req.RoomID, Host: req.Host,
			MaxPlayers: req.MaxPlayers, CurrentPlayers: []string{req.Host},
		})
	}))
	defer srv.Close()

	api := NewAPI(Config{BaseURL: srv.URL})
	created, err := api.CreateRoom(context.Background(), CreateRoomRequest{
		RoomID: "R9", Host: "alice", GameMode: serpent.ModeTeam, MaxPlayers: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.RoomID != "R9" || len(created.CurrentPlayers) != 1 {
		t.Fatalf("created = %+v", created)
	}
}

func TestStartGamePublishesTrigger(t *testing.T) {
	pub := &recordingPublisher{}
	if err := StartGame(pub, "R1"); err != nil {
		t.Fatal(err)
	}
	if pub.destination != "/app/room/R1/start" {
		t.Fatalf("destination = %s", pub.destination)
	}
}

type recordingPublisher struct {
	destination string
	body        []byte
}

func (p *recordingPublisher) Publish(destination string, body []byte) error {
	p.destination = destination
	p.body = body
	return nil
}
