package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/hub"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"go.uber.org/zap"
)

// ResultSource lists recently archived games.
type ResultSource interface {
	Recent(ctx context.Context, n int) ([]archive.Result, error)
}

type Deps struct {
	Registry    *session.Registry
	Lobby       *lobby.Publisher
	WS          http.Handler
	Msgs        *msgcat.Catalog
	Results     ResultSource
	Connections func() int
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// WebSocket for players
	r.GET("/ws", gin.WrapH(d.WS))

	r.GET("/healthz", HealthHandler(d))

	// --- LOBBY / SESSION ENDPOINTS ---
	r.GET("/api/sessions", ListSessionsHandler(d))
	r.GET("/api/sessions/:id", GetSessionHandler(d))

	// --- ARCHIVE ---
	r.GET("/api/results", RecentResultsHandler(d))
	return r
}

func HealthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok", "sessions": d.Registry.Len()}
		if d.Connections != nil {
			body["connections"] = d.Connections()
		}
		c.JSON(http.StatusOK, body)
	}
}

func ListSessionsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Lobby != nil {
			c.JSON(http.StatusOK, d.Lobby.Snapshot())
			return
		}
		c.JSON(http.StatusOK, lobby.Payload(d.Registry.ListOpen()))
	}
}

func GetSessionHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := d.Registry.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": session.Reason(err)})
			return
		}
		c.JSON(http.StatusOK, hub.View(s.State(), d.Msgs))
	}
}

func RecentResultsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Results == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
			return
		}
		limit := 20
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		results, err := d.Results.Recent(c.Request.Context(), limit)
		if err != nil {
			obslog.L().Warn("archive_read_error", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "archive unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obslog.L().Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
