// Command serpent is a thin terminal client for the Serpentia server. It
// wires the sync engine together: lobby and game reconcilers over one
// connection, with termbox key events driving the input controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nsf/termbox-go"

	"serpentia/game"
	"serpentia/identity"
	"serpentia/lobby"
	"serpentia/serpent"
	"serpentia/wstransport"
)

func main() {
	var (
		wsURL   = flag.String("ws", "ws://localhost:8080/ws", "websocket endpoint")
		apiURL  = flag.String("api", "http://localhost:8080", "REST base URL")
		token   = flag.String("token", os.Getenv("SERPENTIA_TOKEN"), "bearer token")
		roomID  = flag.String("room", "", "room to join")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logFile, err := os.OpenFile("serpent.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *wsURL, *apiURL, *token, *roomID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, wsURL, apiURL, token, roomID string) error {
	userID := identity.UserID(token)
	if userID == "" {
		return fmt.Errorf("no usable credential; pass -token or set SERPENTIA_TOKEN")
	}

	transport := wstransport.New(wstransport.Config{URL: wsURL, Token: token, Logger: logger})
	client := serpent.NewClient(serpent.ClientOptions{Transport: transport, Logger: logger})
	defer client.Disconnect()

	api := lobby.NewAPI(lobby.Config{BaseURL: apiURL, Token: token, Logger: logger})
	rooms := lobby.NewReconciler(logger)
	defer rooms.Attach(client)()

	// Full refresh on every (re)connect so missed lobby events cannot
	// leave the list stale.
	client.OnConnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rooms.Resync(ctx, api); err != nil {
			logger.Warn("lobby resync failed", "error", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := client.Connect(ctx)
	cancel()
	if err != nil {
		return err
	}

	board := game.NewReconciler(userID, logger)
	var controller *game.Controller
	if roomID != "" {
		joinCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := lobby.Join(joinCtx, api, rooms, roomID)
		cancel()
		if err != nil {
			return fmt.Errorf("join room %s: %w", roomID, err)
		}
		defer func() {
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := api.LeaveRoom(leaveCtx, roomID); err != nil {
				logger.Warn("leave room failed", "error", err)
			}
		}()

		board.SetRoom(roomID)
		defer board.Attach(client)()
		controller = game.NewController(board, client, game.ControllerConfig{Logger: logger})
	}

	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()

	states := make(chan serpent.GameState, 1)
	defer board.AddListener(func(s serpent.GameState) {
		select {
		case states <- s:
		default:
		}
	})()

	roomLists := make(chan []serpent.Room, 1)
	defer rooms.AddListener(func(rs []serpent.Room) {
		select {
		case roomLists <- rs:
		default:
		}
	})()

	keys := make(chan termbox.Event)
	go func() {
		for {
			keys <- termbox.PollEvent()
		}
	}()

	var (
		state    serpent.GameState
		roomList []serpent.Room
	)
	for {
		select {
		case state = <-states:
		case roomList = <-roomLists:
		case ev := <-keys:
			if ev.Type != termbox.EventKey {
				continue
			}
			if done := handleKey(ev, controller, client, roomID); done {
				return nil
			}
		}
		draw(state, roomList, board, roomID)
	}
}

func handleKey(ev termbox.Event, controller *game.Controller, client *serpent.Client, roomID string) bool {
	var dir serpent.Direction
	switch {
	case ev.Key == termbox.KeyEsc || ev.Ch == 'q':
		return true
	case ev.Key == termbox.KeyArrowUp || ev.Ch == 'w':
		dir = serpent.DirectionUp
	case ev.Key == termbox.KeyArrowDown || ev.Ch == 's':
		dir = serpent.DirectionDown
	case ev.Key == termbox.KeyArrowLeft || ev.Ch == 'a':
		dir = serpent.DirectionLeft
	case ev.Key == termbox.KeyArrowRight || ev.Ch == 'd':
		dir = serpent.DirectionRight
	case ev.Ch == ' ' || ev.Key == termbox.KeyEnter:
		if roomID != "" {
			_ = lobby.StartGame(client, roomID)
		}
		return false
	default:
		return false
	}
	if controller != nil {
		controller.HandleDirection(dir)
	}
	return false
}

func draw(state serpent.GameState, roomList []serpent.Room, board *game.Reconciler, roomID string) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

	if roomID == "" || state.Status == serpent.StatusWaiting {
		drawString(0, 0, "Serpentia lobby (q quits)")
		for i, r := range roomList {
			line := fmt.Sprintf("%-12s %-12s %s %d/%d %s",
				r.RoomID, r.Host, r.GameMode, len(r.CurrentPlayers), r.MaxPlayers, r.Status)
			drawString(0, i+2, line)
		}
		if roomID != "" {
			drawString(0, len(roomList)+3, "waiting for start (enter starts as host)")
		}
		termbox.Flush()
		return
	}

	for x := 0; x <= state.Width+1; x++ {
		termbox.SetCell(x, 0, '-', termbox.ColorDefault, termbox.ColorDefault)
		termbox.SetCell(x, state.Height+1, '-', termbox.ColorDefault, termbox.ColorDefault)
	}
	for y := 0; y <= state.Height+1; y++ {
		termbox.SetCell(0, y, '|', termbox.ColorDefault, termbox.ColorDefault)
		termbox.SetCell(state.Width+1, y, '|', termbox.ColorDefault, termbox.ColorDefault)
	}

	for _, fruit := range state.Fruits {
		termbox.SetCell(fruit.X+1, fruit.Y+1, '*', termbox.ColorRed, termbox.ColorDefault)
	}
	for _, p := range state.Players {
		if !p.Alive {
			continue
		}
		for i, seg := range p.Snake {
			ch := 'o'
			if i == 0 {
				ch = '@'
			}
			termbox.SetCell(seg.X+1, seg.Y+1, ch, termbox.ColorGreen, termbox.ColorDefault)
		}
	}

	y := state.Height + 3
	drawString(0, y, fmt.Sprintf("room %s  status %s", state.RoomID, state.Status))
	for i, p := range board.Leaderboard() {
		drawString(0, y+1+i, fmt.Sprintf("%2d. %-16s %4d", i+1, p.Name, p.Score))
	}
	termbox.Flush()
}

func drawString(x, y int, s string) {
	for i, ch := range s {
		termbox.SetCell(x+i, y, ch, termbox.ColorDefault, termbox.ColorDefault)
	}
}
