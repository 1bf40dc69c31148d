package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *QueryServer) getSymbols(c *gin.Context) {
	symbols, err := s.Query.ListSymbols(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getPrices(c *gin.Context) {
	p, ok := s.rangeParams(c)
	if !ok {
		return
	}

	res, err := s.Query.Prices(c.Request.Context(), p.symbol, p.start, p.end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":     p.symbol,
		"start_date": p.start,
		"end_date":   p.end,
		"empty":      res.Empty,
		"data":       res.Rows,
	})
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getMetrics(c *gin.Context) {
	p, ok := s.rangeParams(c)
	if !ok {
		return
	}
	metric, ok := requiredParam(c, "metric_name")
	if !ok {
		return
	}

	res, err := s.Query.Metrics(c.Request.Context(), p.symbol, metric, p.start, p.end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":      p.symbol,
		"metric_name": metric,
		"start_date":  p.start,
		"end_date":    p.end,
		"empty":       res.Empty,
		"data":        res.Rows,
	})
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs := s.RecentRuns(c.Query("symbol"), limit)
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":              s.Config.Metrics.Enabled,
		"window_size":          s.Config.Metrics.WindowSize,
		"annualization_factor": s.Config.Metrics.AnnualizationFactor,
		"risk_free_rate":       s.Config.Metrics.RiskFreeRate,
	})
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.lastUpdate
	s.stateMutex.RUnlock()

	status, code := "ok", http.StatusOK
	body := gin.H{
		"connections":   connections,
		"latest_update": timestamp,
	}

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			body["store_error"] = err.Error()
		}
	}

	body["status"] = status
	c.JSON(code, body)
}
