package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"serpentia/serpent"
)

// ErrRoomFull is returned when a join is attempted against a room that the
// local snapshot already shows at capacity.
var ErrRoomFull = errors.New("room is full")

// StatusError is a non-2xx answer from a room collaborator endpoint. The
// engine never retries these; they propagate to the caller as a failed
// operation.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// Config configures the REST collaborator client.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// API calls the room CRUD endpoints. Every request carries the bearer
// credential; responses decode into the shared room model.
type API struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewAPI creates an API client from the given config.
func NewAPI(cfg Config) *API {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    httpClient,
		logger:  logger,
	}
}

// CreateRoomRequest is the room creation form.
type CreateRoomRequest struct {
	RoomID      string           `json:"roomId"`
	Host        string           `json:"host"`
	GameMode    serpent.GameMode `json:"gameMode"`
	MaxPlayers  int              `json:"maxPlayers"`
	TargetScore int              `json:"targetScore"`
}

// FetchRooms returns the server's authoritative room list.
func (a *API) FetchRooms(ctx context.Context) ([]serpent.Room, error) {
	var rooms []serpent.Room
	if err := a.do(ctx, http.MethodGet, "/lobby/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room; the caller becomes its host.
func (a *API) CreateRoom(ctx context.Context, req CreateRoomRequest) (serpent.Room, error) {
	var room serpent.Room
	if err := a.do(ctx, http.MethodPost, "/lobby/rooms", req, &room); err != nil {
		return serpent.Room{}, err
	}
	return room, nil
}

// JoinRoom joins the current user into a room.
func (a *API) JoinRoom(ctx context.Context, roomID string) (serpent.Room, error) {
	var room serpent.Room
	if err := a.do(ctx, http.MethodPost, "/lobby/rooms/"+roomID+"/join", nil, &room); err != nil {
		return serpent.Room{}, err
	}
	return room, nil
}

// LeaveRoom removes the current user from a room.
func (a *API) LeaveRoom(ctx context.Context, roomID string) error {
	return a.do(ctx, http.MethodDelete, "/lobby/rooms/"+roomID+"/leave", nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		a.logger.Debug("collaborator call failed", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Join joins a room, rejecting locally when the reconciler's snapshot
// already shows it full. The server enforces the same limit; the local gate
// just avoids a round trip that is known to fail.
func Join(ctx context.Context, api *API, rec *Reconciler, roomID string) (serpent.Room, error) {
	if room, ok := rec.Room(roomID); ok && room.IsFull() {
		return serpent.Room{}, ErrRoomFull
	}
	return api.JoinRoom(ctx, roomID)
}

// StartGame publishes the start trigger for a room. The host calls this
// once every seat is taken.
func StartGame(pub serpent.Publisher, roomID string) error {
	return pub.Publish(serpent.StartDestination(roomID), nil)
}
