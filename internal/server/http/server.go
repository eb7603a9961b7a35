package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/auth"
	"github.com/aokihara/eventboard/internal/feed"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const sessionCookie = "eventboard_session"

type Config struct {
	Host           string
	Port           int
	TemplatesGlob  string
	RateLimitRPS   float64
	RateLimitBurst int
	SecureCookies  bool
}

type Server struct {
	srv     *http.Server
	addr    string
	config  Config
	app     *app.App
	auth    *auth.Auth
	hub     *feed.Hub
	initErr error
}

// NewServer builds the web server. A non-nil initErr puts the server into
// degraded mode: every route renders a blocking initialization-error panel
// with a way back to the landing page instead of crashing the process.
func NewServer(config Config, application *app.App, authService *auth.Auth, hub *feed.Hub, initErr error) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	return &Server{
		addr:    addr,
		config:  config,
		app:     application,
		auth:    authService,
		hub:     hub,
		initErr: initErr,
		srv:     &http.Server{Addr: addr},
	}
}

func (s *Server) Start(_ context.Context) error {
	s.srv.Handler = s.router()

	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware())
	if s.config.RateLimitRPS > 0 {
		r.Use(newRateLimiter(rate.Limit(s.config.RateLimitRPS), s.config.RateLimitBurst))
	}

	glob := s.config.TemplatesGlob
	if glob == "" {
		glob = "web/templates/*.html"
	}
	r.LoadHTMLGlob(glob)

	if s.initErr != nil {
		log.Errorf("serving in degraded mode: %v", s.initErr)
		r.NoRoute(s.handleInitError)
		r.GET("/", s.handleInitError)
		return r
	}

	r.GET("/", s.handleLanding)
	r.GET("/login", s.handleLoginPage)
	r.POST("/login", s.handleLogin)
	r.GET("/register", s.handleRegisterPage)
	r.POST("/register", s.handleRegister)
	r.POST("/logout", s.handleLogout)
	r.GET("/dashboard", s.requireSessionPage, s.handleDashboard)

	api := r.Group("/api", s.requireSessionAPI)
	api.GET("/events", s.handleListEvents)
	api.POST("/events", s.handleCreateEvent)
	api.PUT("/events/:id", s.handleUpdateEvent)
	api.DELETE("/events/:id", s.handleDeleteEvent)
	api.GET("/events/stream", s.handleEventStream)

	return r
}

func (s *Server) handleInitError(c *gin.Context) {
	c.HTML(http.StatusServiceUnavailable, "init_error.html", gin.H{
		"Message": "The service is not configured correctly. Check the backend configuration and restart.",
	})
}
