package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// SnapshotFunc loads the authoritative entity set for a team.
type SnapshotFunc func(ctx context.Context, teamID string) ([]EntityState, error)

// FeedServer streams a SNAPSHOT followed by DELTA frames over a websocket.
type FeedServer struct {
	hub      *Hub
	snapshot SnapshotFunc
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewFeedServer(hub *Hub, snapshot SnapshotFunc, allowedOrigin string, logger *log.Logger) *FeedServer {
	if logger == nil {
		logger = log.Default()
	}
	return &FeedServer{
		hub:      hub,
		snapshot: snapshot,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve upgrades the request and streams teamID's changes until either side
// closes. The subscription is taken before the snapshot is read, so no commit
// falls between the two; overlap is discarded client-side by revision.
func (f *FeedServer) Serve(rw http.ResponseWriter, r *http.Request, teamID string) {
	conn, err := f.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := f.hub.Subscribe(teamID)
	defer f.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	entities, err := f.snapshot(ctx, teamID)
	if err != nil {
		f.log.Printf("realtime: snapshot for %s: %v", teamID, err)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot failed"), time.Now().Add(time.Second))
		return
	}
	if err := writeFrame(conn, Message{Type: MessageSnapshot, Entities: entities}); err != nil {
		return
	}

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case d, ok := <-sub.Deltas():
				if !ok {
					// Dropped as a slow consumer; closing forces a resync.
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"), time.Now().Add(time.Second))
					writeErr <- nil
					_ = conn.Close()
					return
				}
				delta := d
				if err := writeFrame(conn, Message{Type: MessageDelta, Delta: &delta}); err != nil {
					writeErr <- err
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Reader loop: clients only send control frames.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}

func writeFrame(conn *websocket.Conn, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, raw)
}
