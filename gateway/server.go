// Package gateway exposes a chi-routed HTTP/WebSocket front end over one
// logix.Client: tag listing, cached or live reads, authenticated writes,
// and a websocket feed of the poll loop's snapshots. Grounded on the
// teacher's www.Handlers/router structure and session auth.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/amrhady2/go-logix-cip/cache"
	"github.com/amrhady2/go-logix-cip/logging"
	"github.com/amrhady2/go-logix-cip/logix"
)

// Config names the single operator account and session secret.
type Config struct {
	OperatorUser  string
	OperatorHash  string // bcrypt hash
	SessionSecret string
}

// tagOp is a unit of work sent to the single worker goroutine per PLC,
// serializing every gateway-driven call against the one-writer logix.Client
// instance per §5's ambient-concurrency note.
type tagOp func(c *logix.Client)

// Server is the chi router plus its background worker and websocket hub.
type Server struct {
	router   chi.Router
	client   *logix.Client
	cache    *cache.SnapshotCache
	plcName  string
	sessions *sessionStore
	cfg      Config
	logger   logging.Logger

	ops chan tagOp

	hub *broadcastHub

	tagsMu sync.RWMutex
	tags   []logix.Tag
}

// New builds a gateway.Server. The caller is responsible for starting the
// worker loop via Run and for feeding poll-loop snapshots into Broadcast.
func New(plcName string, client *logix.Client, snapshotCache *cache.SnapshotCache, cfg Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	s := &Server{
		client:   client,
		cache:    snapshotCache,
		plcName:  plcName,
		sessions: newSessionStore(cfg.SessionSecret),
		cfg:      cfg,
		logger:   logger,
		ops:      make(chan tagOp, 32),
		hub:      newBroadcastHub(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi.Router for mounting (or serving directly).
func (s *Server) Router() chi.Router { return s.router }

// Run drives the single worker goroutine that owns the PLC connection.
// Every tag op submitted through the gateway is executed here, never
// directly from an HTTP handler goroutine.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.ops:
			op(s.client)
		}
	}
}

// Serve runs the HTTP listener and the tag-op worker loop together,
// stopping both when ctx is cancelled or either one fails. Grounded on the
// teacher's pattern of running the REST API and its broadcast hub side by
// side, adapted here to golang.org/x/sync/errgroup instead of a hand-rolled
// WaitGroup.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Run(gctx)
		return nil
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})
	return g.Wait()
}

// Broadcast pushes one poll cycle's values to every connected websocket
// client. The tag list served by GET /tags is updated by SetTags.
func (s *Server) Broadcast(values []logix.TagValue) {
	s.hub.broadcast(values)
}

// SetTags updates the cached tag list served by GET /tags (populated by the
// poll loop's own SymbolCatalogue pass).
func (s *Server) SetTags(tags []logix.Tag) {
	s.tagsMu.Lock()
	s.tags = tags
	s.tagsMu.Unlock()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/tags", s.handleListTags)
	r.Get("/tags/{name}", s.handleGetTag)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/tags/{name}", s.handleWriteTag)
	})
	r.Get("/ws", s.handleWebsocket)
	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.isAuthenticated(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if body.Username != s.cfg.OperatorUser || !checkPassword(body.Password, s.cfg.OperatorHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.sessions.setUser(w, r, body.Username); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.tagsMu.RLock()
	tags := s.tags
	s.tagsMu.RUnlock()
	writeJSON(w, tags)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if s.cache != nil {
		if tv, ok, err := s.cache.Get(r.Context(), s.plcName, name); err == nil && ok {
			writeJSON(w, tv)
			return
		}
	}

	result := make(chan *logix.ReadResult, 1)
	errCh := make(chan error, 1)
	s.ops <- func(c *logix.Client) {
		res, err := c.ReadTag(name)
		if err != nil {
			errCh <- err
			return
		}
		result <- res
	}

	select {
	case res := <-result:
		writeJSON(w, logix.TagValue{Name: res.Name, Value: res.Value, Type: res.Type, Timestamp: time.Now()})
	case err := <-errCh:
		http.Error(w, err.Error(), http.StatusBadGateway)
	case <-time.After(10 * time.Second):
		http.Error(w, "timeout", http.StatusGatewayTimeout)
	}
}

func (s *Server) handleWriteTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var body struct {
		Value interface{} `json:"value"`
		Type  string      `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	typ := parseTypeName(body.Type)

	errCh := make(chan error, 1)
	s.ops <- func(c *logix.Client) {
		errCh <- c.WriteTag(name, body.Value, typ)
	}

	select {
	case err := <-errCh:
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case <-time.After(10 * time.Second):
		http.Error(w, "timeout", http.StatusGatewayTimeout)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.LogError("gateway", err)
		return
	}
	s.hub.register(conn)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
