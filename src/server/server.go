package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider exposes the engine view shown by /api/health.
type StatusProvider interface {
	Status() models.MEngineStatus
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server serves the websocket push protocol and the REST endpoints. It is the
// IClientTransport of the distribution hub.
type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	// WebSocket clients, keyed by client id
	clients   map[string]*Client
	clientsMu sync.RWMutex
	events    chan models.MClientEvent
	done      chan struct{}
	stopOnce  sync.Once

	status StatusProvider
	store  interfaces.IBarStore
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, logger *logger.Logger) *Server {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:  cfg,
		Logger:  logger,
		engine:  gin.New(),
		clients: make(map[string]*Client),
		// Client notifications queue for the hub
		events: make(chan models.MClientEvent, 256),
		done:   make(chan struct{}),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// SetStatusProvider wires the engine status into /api/health.
func (s *Server) SetStatusProvider(p StatusProvider) {
	s.status = p
}

// SetBarStore enables /api/bars.
func (s *Server) SetBarStore(store interfaces.IBarStore) {
	s.store = store
}

// Handler exposes the routes, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/bars/:symbol", s.getBars)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP server down and closes every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.clientsMu.Lock()
	for _, c := range s.clients {
		if c.conn != nil {
			c.conn.Close()
		}
	}
	s.clientsMu.Unlock()

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	s.clientsMu.RLock()
	connections := len(s.clients)
	s.clientsMu.RUnlock()

	resp := gin.H{
		"status":      "ok",
		"connections": connections,
	}
	if s.status != nil {
		resp["engine"] = s.status.Status()
	}
	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bar_interval":   s.Config.Engine.BarInterval,
		"timestamp_unit": s.Config.Engine.TimestampUnit,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getBars(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bar journal disabled"})
		return
	}

	sym, err := models.ParseSymbol(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bars, err := s.store.RecentBars(sym.String(), limit)
	if err != nil {
		s.Logger.Error("Failed to read bars for %s: %v", sym, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read bars"})
		return
	}
	if bars == nil {
		bars = []models.MBar{}
	}

	c.JSON(http.StatusOK, gin.H{"symbol": sym, "bars": bars})
}
