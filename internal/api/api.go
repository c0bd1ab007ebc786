// Package api is the admin HTTP surface: health, session listing, and
// audit log queries. Adapted from the teacher's gin router/handler split
// (CORS middleware, route groups, JSON envelope) against session and
// audit state instead of a device inventory.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JuanCF/scrcpy-mcp/internal/session"
	"github.com/JuanCF/scrcpy-mcp/internal/store"
)

// Server holds everything the admin HTTP surface reads from.
type Server struct {
	Sessions *session.Manager
	Audit    *store.Store
	WS       http.HandlerFunc
}

// NewEngine builds a gin engine with CORS, health, session, and audit
// routes wired in.
func NewEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, successResponse(gin.H{"status": "ok"}))
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/sessions", func(c *gin.Context) { s.listSessions(c) })
		apiGroup.GET("/audit", func(c *gin.Context) { s.listAudit(c) })
	}

	if s.WS != nil {
		r.GET("/ws", func(c *gin.Context) { s.WS(c.Writer, c.Request) })
	}

	return r
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.Sessions.All()
	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		meta := sess.Metadata()
		out = append(out, gin.H{
			"serial":      sess.Serial,
			"state":       sess.State().String(),
			"socket":      sess.SocketName(),
			"device_name": meta.DeviceName,
			"width":       meta.Width,
			"height":      meta.Height,
		})
	}
	c.JSON(http.StatusOK, successResponse(out))
}

func (s *Server) listAudit(c *gin.Context) {
	if s.Audit == nil {
		c.JSON(http.StatusOK, successResponse([]store.AuditRow{}))
		return
	}
	rows, err := s.Audit.Recent(200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(rows))
}

func successResponse(data interface{}) gin.H {
	return gin.H{"success": true, "data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"success": false, "error": message}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
