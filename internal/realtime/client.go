package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Client keeps a Reconciler in sync with a feed endpoint. Run owns the
// reconciler; other goroutines reach it through Do.
type Client struct {
	url    string
	header http.Header
	rec    *Reconciler
	log    *log.Logger

	ops chan func(*Reconciler)

	// OnUpdate, if set, is called from the Run goroutine after every frame
	// that changed the view.
	OnUpdate func(r *Reconciler, msg Message)
	// OnSettle, if set, receives write-back outcomes.
	OnSettle func(entityID string, err error)
}

func NewClient(url string, header http.Header, rec *Reconciler, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{url: url, header: header, rec: rec, log: logger, ops: make(chan func(*Reconciler), 16)}
}

// Do runs fn on the Run goroutine and waits for it.
func (c *Client) Do(ctx context.Context, fn func(*Reconciler)) error {
	done := make(chan struct{})
	select {
	case c.ops <- func(r *Reconciler) { fn(r); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects, resyncs from the SNAPSHOT frame and applies deltas until ctx
// ends, reconnecting with backoff after every disconnect.
func (c *Client) Run(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Printf("realtime: feed disconnected: %v (retry in %s)", err, backoff)
		if !c.wait(ctx, backoff) {
			return ctx.Err()
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

// wait sleeps for d while still serving ops and write-back results.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case op := <-c.ops:
			op(c.rec)
		case res := <-c.rec.Results():
			c.settle(res)
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return err
	}
	defer conn.Close()

	frames := make(chan Message, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			select {
			case frames <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	synced := false
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return ctx.Err()
		case msg, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			switch msg.Type {
			case MessageSnapshot:
				c.rec.Resync(msg.Entities)
				synced = true
				c.notify(msg)
			case MessageDelta:
				// Deltas before the first snapshot are covered by it.
				if synced && msg.Delta != nil && c.rec.Apply(*msg.Delta) {
					c.notify(msg)
				}
			}
		case op := <-c.ops:
			op(c.rec)
		case res := <-c.rec.Results():
			c.settle(res)
		}
	}
}

func (c *Client) notify(msg Message) {
	if c.OnUpdate != nil {
		c.OnUpdate(c.rec, msg)
	}
}

func (c *Client) settle(res WriteResult) {
	err := c.rec.Settle(res)
	if c.OnSettle != nil {
		c.OnSettle(res.EntityID, err)
	}
}
