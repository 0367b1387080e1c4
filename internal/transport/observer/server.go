package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rybalka.web/internal/game"
	"rybalka.web/internal/observerproto"
	"rybalka.web/internal/session"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd session.Command) (session.Result, error)
}

type Config struct {
	UserID     string
	Dispatcher Dispatcher
	// View returns the current state for a new subscriber.
	View      func() session.View
	WormPrice int64

	// Origins limits websocket origins; empty accepts any.
	Origins []string
	// AllowRemote accepts non-loopback peers.
	AllowRemote bool

	Logger *log.Logger
}

// Server bridges one session to websocket front-ends. It is the session's
// Notifier and RenderSink: every notification and view change is pushed to all
// subscribers, and ACTION messages are dispatched to the controller.
type Server struct {
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	out     chan []byte
	notices bool
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.View == nil {
		return nil, fmt.Errorf("view source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		subs: map[string]*subscriber{},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/view/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/view/ws", s.WSHandler())
	return mux
}

// Subscribers reports how many connections completed the handshake.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) Notify(n session.Notification) {
	b, err := json.Marshal(observerproto.NewNotice(n))
	if err != nil {
		return
	}
	s.broadcast(b, true)
}

func (s *Server) Render(v session.View) {
	b, err := json.Marshal(observerproto.NewSnapshot(v))
	if err != nil {
		s.log.Printf("observer: encode snapshot: %v", err)
		return
	}
	s.broadcast(b, false)
}

func (s *Server) broadcast(b []byte, notice bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if notice && !sub.notices {
			continue
		}
		select {
		case sub.out <- b:
		default:
			// Slow reader; a later SNAPSHOT supersedes what it missed.
			s.log.Printf("observer: drop message for %s", id)
		}
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowedPeer(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			UserID:          s.cfg.UserID,
			Categories:      game.Categories,
			WormPrice:       s.cfg.WormPrice,
		}
		for _, k := range game.SlotKinds {
			resp.Slots = append(resp.Slots, observerproto.SlotInfo{Kind: k, Label: k.Label()})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowedPeer(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("V%d", s.nextID.Add(1))
		out := make(chan []byte, 64)
		first, err := json.Marshal(observerproto.NewSnapshot(s.cfg.View()))
		if err == nil {
			out <- first
		}
		s.mu.Lock()
		s.subs[sid] = &subscriber{out: out, notices: sub.WantsNotices()}
		s.mu.Unlock()
		s.log.Printf("observer: %s subscribed from %s", sid, r.RemoteAddr)
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
			s.log.Printf("observer: %s left", sid)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: ACTION messages. Each runs on its own goroutine so a
		// second gesture reaches the controller while the first is in flight.
		// A submitted action outlives the connection; only its RESULT is dropped.
		var inflight sync.WaitGroup
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var act observerproto.ActionMsg
			if err := json.Unmarshal(msg, &act); err != nil || act.Type != observerproto.TypeAction {
				continue
			}
			inflight.Add(1)
			go func(act observerproto.ActionMsg) {
				defer inflight.Done()
				res := s.dispatch(ctx, act)
				b, err := json.Marshal(res)
				if err != nil {
					return
				}
				select {
				case out <- b:
				case <-ctx.Done():
				}
			}(act)
		}

		cancel()
		inflight.Wait()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) dispatch(ctx context.Context, act observerproto.ActionMsg) observerproto.ResultMsg {
	bad := func(msg string) observerproto.ResultMsg {
		return observerproto.ResultMsg{
			Type:            observerproto.TypeResult,
			ProtocolVersion: observerproto.Version,
			ID:              act.ID,
			Kind:            "invalid",
			Error:           msg,
		}
	}
	if act.ProtocolVersion != observerproto.Version {
		return bad("unsupported protocol version")
	}
	a, ok := session.ParseAction(string(act.Command.Action))
	if !ok {
		return bad(fmt.Sprintf("unknown action %q", act.Command.Action))
	}
	cmd := act.Command
	cmd.Action = a
	if cmd.Category != "" || a == session.ActionFilter {
		if _, err := game.ParseCategory(cmd.Category); err != nil {
			return bad(err.Error())
		}
	}

	res, err := s.cfg.Dispatcher.Dispatch(context.WithoutCancel(ctx), cmd)
	return observerproto.NewResult(act.ID, res, err)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.cfg.Origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) allowedPeer(remoteAddr string) bool {
	return s.cfg.AllowRemote || isLoopbackRemote(remoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
