package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/query"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// QueryServer
// -----------------------------------------------------------------------------

var (
	_ interfaces.IDataExchanger = (*QueryServer)(nil)
	_ interfaces.IReportSink    = (*QueryServer)(nil)
)

// QueryServer serves range queries to the dashboard and pushes run reports
// over a websocket.
type QueryServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Query   *query.Service
	DB      interfaces.IDatabase
	engine  *gin.Engine
	httpSrv *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MRunReport
	register   chan *Client
	unregister chan *Client
	resync     chan *Client
	done       chan struct{}
	hubOnce    sync.Once
	stopOnce   sync.Once

	// Recent run reports, oldest first
	runs       []models.MRunReport
	maxRuns    int
	lastUpdate int64
	stateMutex sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewQueryServer wires the routes. gatherer may be nil to leave /metrics out.
func NewQueryServer(cfg *models.MConfig, svc *query.Service, db interfaces.IDatabase, gatherer prometheus.Gatherer, logger *logger.Logger) *QueryServer {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	maxRuns := cfg.Pipeline.RecentRuns
	if maxRuns <= 0 {
		maxRuns = 200
	}

	s := &QueryServer{
		Config:  cfg,
		Logger:  logger,
		Query:   svc,
		DB:      db,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered so pipeline workers never wait on slow websocket clients
		broadcast:  make(chan models.MRunReport, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resync:     make(chan *Client),
		done:       make(chan struct{}),
		maxRuns:    maxRuns,
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes(gatherer)
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *QueryServer) setupRoutes(gatherer prometheus.Gatherer) {
	api := s.engine.Group("/api")
	api.GET("/symbols", s.getSymbols)
	api.GET("/prices", s.getPrices)
	api.GET("/metrics", s.getMetrics)
	api.GET("/runs", s.getRuns)
	api.GET("/config", s.getConfig)
	api.GET("/health", s.getHealth)

	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *QueryServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop.
func (s *QueryServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.startHub()

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *QueryServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.httpSrv.Shutdown(ctx)
		}
	})
	return err
}

// -----------------------------------------------------------------------------

func (s *QueryServer) startHub() {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
}

// -----------------------------------------------------------------------------

func (s *QueryServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
