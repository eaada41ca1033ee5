package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"haulcraft.sim/internal/protocol"
	"haulcraft.sim/internal/sim/world"
)

const (
	handshakeWait = 5 * time.Second
	writeWait     = 5 * time.Second
	// Observers send nothing after HELLO, so liveness runs on server pings:
	// the read deadline is only ever extended by the peer's pongs.
	defaultPongWait = 60 * time.Second
)

// Server upgrades observer connections and bridges them to the world's
// attach/detach channels. Observers are read-only: after the HELLO
// handshake the connection only carries TICK and TRANSFER messages out,
// with a ping/pong keepalive as the liveness probe.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader

	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		pongWait: defaultPongWait,
	}
	s.pingPeriod = s.pongWait * 9 / 10
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		observerID, out := s.handshake(conn)
		if observerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: outbound messages plus the keepalive pings.
		go func() {
			ping := time.NewTicker(s.pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						cancel()
						return
					}
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: nothing but pongs is expected back, and pongs are
		// consumed inside ReadMessage. Each pong extends the deadline; a
		// peer that stops answering times out here.
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				break
			}
		}

		// Cleanup.
		s.world.Detach() <- observerID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (observerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if strings.TrimSpace(hello.ObserverName) == "" {
		hello.ObserverName = "observer"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out = make(chan []byte, maxQ)

	resp := make(chan world.AttachResponse, 1)
	s.world.Attach() <- world.AttachRequest{
		ObserverName: hello.ObserverName,
		Out:          out,
		Resp:         resp,
	}

	var ar world.AttachResponse
	select {
	case ar = <-resp:
	case <-time.After(handshakeWait):
		return "", nil
	}

	// The observer is registered from here on: any failure to deliver the
	// WELCOME has to detach it again or the entry leaks.
	b, err := json.Marshal(ar.Welcome)
	if err != nil {
		s.world.Detach() <- ar.ObserverID
		return "", nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.world.Detach() <- ar.ObserverID
		return "", nil
	}
	return ar.ObserverID, out
}
