package server

import (
	"errors"
	"net/http"
	"strings"

	"market-metrics/src/helpers"

	"github.com/gin-gonic/gin"
)

type rangeQuery struct {
	symbol string
	start  string
	end    string
}

// -----------------------------------------------------------------------------

func requiredParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter: " + name})
		return "", false
	}
	return v, true
}

// -----------------------------------------------------------------------------

func (s *QueryServer) rangeParams(c *gin.Context) (rangeQuery, bool) {
	var q rangeQuery
	var ok bool
	if q.symbol, ok = requiredParam(c, "symbol"); !ok {
		return q, false
	}
	if q.start, ok = requiredParam(c, "start_date"); !ok {
		return q, false
	}
	if q.end, ok = requiredParam(c, "end_date"); !ok {
		return q, false
	}
	return q, true
}

// -----------------------------------------------------------------------------

// writeError maps validation errors to 400 and transient store errors to 503.
func (s *QueryServer) writeError(c *gin.Context, err error) {
	var verr *helpers.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}

	class := helpers.ClassOf(err)
	s.Logger.Error("%s %s failed (%s): %v", c.Request.Method, c.Request.URL.Path, class, err)

	code := http.StatusInternalServerError
	if class == helpers.Transient {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"error": err.Error(), "class": string(class)})
}

// -----------------------------------------------------------------------------

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
