// Package web is the browser-facing control surface. It executes through
// the same pin manager and status reporter as the network server; it is an
// I/O adapter, not part of the core request path.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mhartlieb/pincore/internal/config"
	"github.com/mhartlieb/pincore/internal/pins"
	"github.com/mhartlieb/pincore/internal/status"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	pins     *pins.Manager
	reporter *status.Reporter
	hub      *Hub
	logger   *zap.Logger
	server   *http.Server
}

func NewServer(cfg config.WebConfig, pinManager *pins.Manager, reporter *status.Reporter, hub *Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		pins:     pinManager,
		reporter: reporter,
		hub:      hub,
		logger:   logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(loggerMiddleware(logger))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/pin/set", s.handleSetPin)
		api.GET("/pin/get", s.handleGetPin)
		api.POST("/pin/toggle", s.handleTogglePin)
		api.POST("/pin/pwm", s.handleSetPWM)
		api.POST("/reset", s.handleResetPins)
	}

	s.router.GET("/ws/live", s.handleLive)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(controlPage))
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.reporter.Document())
}

func (s *Server) handleSetPin(c *gin.Context) {
	pin, value, ok := s.pinValueParams(c)
	if !ok {
		return
	}

	if err := s.pins.SetDigital(pin, value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to set pin: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pin": pin, "value": value, "message": "Pin set successfully"})
}

func (s *Server) handleGetPin(c *gin.Context) {
	pin, ok := s.pinParam(c)
	if !ok {
		return
	}

	var value int
	switch s.pins.Mode(pin) {
	case pins.ModePWMOutput:
		value = s.pins.GetPWM(pin)
	default:
		value = s.pins.GetDigital(pin)
	}

	if value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to get pin value"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pin":     pin,
		"value":   value,
		"mode":    s.pins.Mode(pin).String(),
	})
}

func (s *Server) handleTogglePin(c *gin.Context) {
	pin, ok := s.pinParam(c)
	if !ok {
		return
	}

	if err := s.pins.Toggle(pin); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to toggle pin: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pin":     pin,
		"value":   s.pins.GetDigital(pin),
		"message": "Pin toggled successfully",
	})
}

func (s *Server) handleSetPWM(c *gin.Context) {
	pin, value, ok := s.pinValueParams(c)
	if !ok {
		return
	}

	if err := s.pins.SetPWM(pin, value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to set PWM: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pin": pin, "value": value, "message": "PWM set successfully"})
}

func (s *Server) handleResetPins(c *gin.Context) {
	s.pins.ResetAllPins()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All pins reset"})
}

func (s *Server) handleLive(c *gin.Context) {
	ServeWs(s.hub, c.Writer, c.Request, s.logger)
}

func (s *Server) pinParam(c *gin.Context) (int, bool) {
	pin, err := strconv.Atoi(c.Query("pin"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing or invalid pin parameter"})
		return 0, false
	}
	return pin, true
}

func (s *Server) pinValueParams(c *gin.Context) (int, int, bool) {
	pin, ok := s.pinParam(c)
	if !ok {
		return 0, 0, false
	}
	value, err := strconv.Atoi(c.Query("value"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing or invalid value parameter"})
		return 0, 0, false
	}
	return pin, value, true
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
