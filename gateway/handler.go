package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oz-collabo-04/Back/auth"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/errors"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/oz-collabo-04/Back/router"
	"github.com/oz-collabo-04/Back/runtime"
)

const (
	subprotocolHeader  = "Sec-WebSocket-Protocol"
	invalidFrameDetail = "invalid frame."
)

type Config struct {
	SessionBufferSize int
	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	PingInterval      time.Duration
	MaxFrameBytes     int64
}

func DefaultConfig() Config {
	return Config{
		SessionBufferSize: 256,
		WriteTimeout:      10 * time.Second,
		PongTimeout:       60 * time.Second,
		PingInterval:      54 * time.Second,
		MaxFrameBytes:     64 * 1024,
	}
}

// Gateway owns the two WebSocket endpoints.
type Gateway struct {
	log      *slog.Logger
	cfg      Config
	admitter *Admitter
	registry contract.IRegistry
	monitor  *observability.Monitor
	chat     *router.Router
	notify   *router.Router
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

func NewGateway(
	log *slog.Logger,
	cfg Config,
	admitter *Admitter,
	registry contract.IRegistry,
	monitor *observability.Monitor,
	chat, notify *router.Router,
) *Gateway {
	return &Gateway{
		log:      log,
		cfg:      cfg,
		admitter: admitter,
		registry: registry,
		monitor:  monitor,
		chat:     chat,
		notify:   notify,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		baseCtx: context.Background(),
	}
}

// WithContext binds sessions to ctx: when it is canceled every open session
// is closed with 1001.
func (g *Gateway) WithContext(ctx context.Context) *Gateway {
	g.baseCtx = ctx
	return g
}

func (g *Gateway) ServeChat(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromSubprotocols(r.Header.Get(subprotocolHeader))
	admission, err := g.admitter.AdmitChat(r.Context(), token, chi.URLParam(r, "room_id"))
	g.serve(w, r, token, admission, err, g.chat)
}

func (g *Gateway) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromSubprotocols(r.Header.Get(subprotocolHeader))
	admission, err := g.admitter.AdmitNotification(r.Context(), token)
	g.serve(w, r, token, admission, err, g.notify)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, token string, admission Admission, admitErr error, rt *router.Router) {
	header := http.Header{}
	if token != "" {
		header.Set(subprotocolHeader, token)
	}

	if admitErr != nil {
		g.reject(w, r, header, admitErr)
		return
	}

	ctx, cancel := context.WithCancel(g.baseCtx)
	defer cancel()

	transport := newTransport(g.cfg.WriteTimeout)
	session := runtime.NewSession(g.log, admission.Identity, admission.Scope, transport, g.registry, rt, g.monitor, g.cfg.SessionBufferSize)
	if admission.Scope.Group != "" {
		session.Join(admission.Scope.Group)
	}
	session.Advance(runtime.Admitted)

	conn, err := g.upgrader.Upgrade(w, r, header)
	if err != nil {
		session.Log().Warn("Upgrade failed", "error", err)
		session.Close(domain.CloseNotFound, "upgrade failed")
		return
	}
	transport.attach(conn)

	session.OnClose(func(s *runtime.Session, wasActive bool) {
		if wasActive {
			rt.Exit(context.WithoutCancel(ctx), s)
		}
	})
	stop := context.AfterFunc(ctx, func() {
		session.Close(websocket.CloseGoingAway, "server shutting down")
	})
	defer stop()

	if !session.Advance(runtime.Active) {
		session.Close(websocket.CloseNormalClosure, "")
		return
	}
	session.Log().Info("Session admitted")

	go func() {
		if err := session.Run(ctx); err != nil {
			session.Log().Debug("Write pump stopped", "error", err)
		}
	}()
	go g.keepAlive(session, transport)

	rt.Enter(ctx, session)
	g.readLoop(ctx, session, conn, rt)
}

// reject accepts the handshake only to close it with the code of err.
// No session is created and no group is joined.
func (g *Gateway) reject(w http.ResponseWriter, r *http.Request, header http.Header, err error) {
	g.monitor.IncrRejected()
	code := errors.CloseCode(err)
	g.log.Info("Connection refused", "path", r.URL.Path, "code", code, "error", err)

	conn, upErr := g.upgrader.Upgrade(w, r, header)
	if upErr != nil {
		g.log.Debug("Upgrade of refused connection failed", "error", upErr)
		return
	}
	transport := newTransport(g.cfg.WriteTimeout)
	transport.attach(conn)
	_ = transport.Close(code, errors.CloseReason(err))
}

func (g *Gateway) readLoop(ctx context.Context, s *runtime.Session, conn *websocket.Conn, rt *router.Router) {
	defer s.Close(websocket.CloseNormalClosure, "")

	conn.SetReadLimit(g.cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.Log().Warn("Unexpected close", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))

		evt, err := event.ParseFrame(data)
		if err != nil {
			s.Log().Debug("Malformed frame", "error", err)
			_ = s.Send(event.Error(invalidFrameDetail))
			continue
		}
		rt.HandleInbound(ctx, s, evt)
	}
}

func (g *Gateway) keepAlive(s *runtime.Session, t *wsTransport) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			if err := t.Ping(); err != nil {
				s.Log().Debug("Ping failed", "error", err)
				s.Close(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}
