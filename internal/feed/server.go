package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/catalog"
	"github.com/pricepulse/pulse/internal/market"
)

const writeTimeout = 10 * time.Second

// Res is the JSON body of every REST response.
type Res struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PriceLookup returns the most recent update recorded for an asset.
type PriceLookup interface {
	Latest(ctx context.Context, id string) (market.PriceUpdate, bool, error)
}

// ServerConfig holds the parameters of a feed Server.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	Interval       time.Duration
}

// Server exposes the live feed over WebSocket plus the catalog and health
// endpoints. Each WebSocket client gets its own Session.
type Server struct {
	cfg     ServerConfig
	gen     *Generator
	catalog catalog.Catalog
	taps    []Tap
	latest  PriceLookup
	logger  *zap.Logger

	engine   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader
	origins  map[string]bool

	ctx       context.Context
	cancelAll context.CancelFunc

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer wires the routes. Call ListenAndServe or use Handler directly.
func NewServer(cfg ServerConfig, gen *Generator, cat catalog.Catalog, taps []Tap, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		gen:       gen,
		catalog:   cat,
		taps:      taps,
		logger:    logger,
		origins:   make(map[string]bool, len(cfg.AllowedOrigins)),
		ctx:       ctx,
		cancelAll: cancel,
		sessions:  make(map[string]context.CancelFunc),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsPolicy(s.originAllowed))

	r.GET("/ws", s.serveWS)
	r.GET("/healthz", s.health)
	api := r.Group("/api")
	{
		api.GET("/cryptos", s.listAssets)
	}

	s.engine = r
	s.http = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

// SetLatest makes /api/cryptos overlay the last recorded prices onto the
// catalog. Must be called before serving.
func (s *Server) SetLatest(l PriceLookup) {
	s.latest = l
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("feed server listening",
		zap.String("addr", s.cfg.Addr),
		zap.Strings("allowed_origins", s.cfg.AllowedOrigins))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("feed: listen: %w", err)
	}
	return nil
}

// Shutdown cancels every live session, waits for them to stop and then
// drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancelling under mu orders it against track, so no session is added
	// once Wait below can start.
	s.mu.Lock()
	s.cancelAll()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.http.Shutdown(ctx)
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) originAllowed(origin string) bool {
	// Non-browser clients send no Origin.
	return origin == "" || s.origins[origin]
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	defer conn.Close()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	if !s.track(id, cancel) {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer s.untrack(id)

	logger := s.logger.With(zap.String("session", id), zap.String("remote", c.Request.RemoteAddr))
	logger.Info("client connected")

	// The reader only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sess := NewSession(id, s.gen, s.cfg.Interval, s.taps, s.logger)
	err = sess.Run(ctx, EmitterFunc(func(u market.PriceUpdate) error {
		data, err := market.EncodeUpdate(u)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, data)
	}))
	cancel()

	if err != nil {
		logger.Info("client disconnected", zap.Error(err))
		return
	}
	logger.Info("client disconnected")
}

// track registers a session. It reports false once Shutdown has started.
func (s *Server) track(id string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	s.sessions[id] = cancel
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	if cancel, ok := s.sessions[id]; ok {
		cancel()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) listAssets(c *gin.Context) {
	assets, err := s.catalog.Assets(c.Request.Context())
	if err != nil {
		s.logger.Error("load catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Res{Error: "failed to load assets"})
		return
	}
	if s.latest != nil {
		assets = s.overlayLatest(c.Request.Context(), assets)
	}
	c.JSON(http.StatusOK, Res{Success: true, Data: assets})
}

// overlayLatest applies the last recorded update of each asset. Lookup
// failures leave the catalog values in place.
func (s *Server) overlayLatest(ctx context.Context, assets []market.Asset) []market.Asset {
	state := market.SetAssets(market.InitialState(), assets)
	for _, a := range assets {
		u, ok, err := s.latest.Latest(ctx, a.ID)
		if err != nil {
			s.logger.Warn("latest price lookup", zap.String("id", a.ID), zap.Error(err))
			continue
		}
		if ok {
			state = market.ApplyPriceUpdate(state, u)
		}
	}
	return state.Assets
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, Res{Success: true, Data: gin.H{
		"status":   "ok",
		"sessions": s.Sessions(),
	}})
}
