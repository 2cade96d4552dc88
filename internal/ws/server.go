package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vidpress/orchestrator/internal/job"
)

const writeTimeout = 5 * time.Second

// Server pushes job events to connected UI clients. Each connection
// gets its own event bus subscription; a slow client drops events
// rather than stalling the queue.
type Server struct {
	events *job.EventBus
}

func NewServer(events *job.EventBus) *Server {
	return &Server{events: events}
}

func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local UI only
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	events, cancel := s.events.Subscribe()
	defer cancel()

	// Replay whatever happened before the client connected.
	backlog := s.events.Since(0)
	var lastSeq int64
	if len(backlog) > 0 {
		lastSeq = backlog[len(backlog)-1].Seq
	}

	// CloseRead cancels the context when the client goes away.
	ctx := conn.CloseRead(r.Context())

	if err := write(ctx, conn, AckMessage{Type: "ack", LastSeq: lastSeq}); err != nil {
		return
	}
	for _, e := range backlog {
		if err := write(ctx, conn, EventMessage{Type: "job_event", Event: e}); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			if e.Seq <= lastSeq {
				continue
			}
			if err := write(ctx, conn, EventMessage{Type: "job_event", Event: e}); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg any) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, msg)
}
