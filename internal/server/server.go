// Package server is a reference backend for the list API: one shared list,
// a revision bumped by every mutation, and optional fault injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/remote"
)

const (
	statusOK    = "ok"
	statusError = "error"

	msgUnsynchronized = "unsynchronized data"
)

type Server struct {
	token string
	log   *zap.Logger
	roll  func() int // uniform in [0, 100)

	registry *prometheus.Registry
	metrics  *Metrics

	mu       sync.Mutex
	items    []remote.TodoItemDto
	revision int
}

type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every list route.
func WithToken(token string) Option { return func(s *Server) { s.token = token } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithRoll replaces the dice used by X-Generate-Fails.
func WithRoll(roll func() int) Option { return func(s *Server) { s.roll = roll } }

func New(opts ...Option) *Server {
	s := &Server{
		log:      zap.NewNop(),
		roll:     func() int { return rand.IntN(100) },
		registry: prometheus.NewRegistry(),
		items:    []remote.TodoItemDto{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("server")
	s.metrics = NewMetrics(s.registry)
	return s
}

// Revision returns the current list revision.
func (s *Server) Revision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.middleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	list := r.Group("/list", s.auth(), s.generateFails())
	list.GET("", s.getList)
	list.PATCH("", s.revisionCheck(), s.patchList)
	list.GET("/:id", s.getItem)
	list.POST("", s.revisionCheck(), s.addItem)
	list.PUT("/:id", s.revisionCheck(), s.updateItem)
	list.DELETE("/:id", s.revisionCheck(), s.deleteItem)
	return r
}

// ---------------------------------------------------
// Middleware
// ---------------------------------------------------

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"status": statusError, "message": msg})
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			return
		}
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") || strings.TrimSpace(h[len("Bearer "):]) != s.token {
			fail(c, http.StatusUnauthorized, "unauthorized")
		}
	}
}

func (s *Server) generateFails() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := c.GetHeader(remote.HeaderGenerateFails)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return
		}
		if s.roll() < n {
			s.metrics.InjectedFailures.Inc()
			fail(c, http.StatusInternalServerError, "generated failure")
		}
	}
}

// revisionCheck rejects mutations whose known revision is stale. It holds
// the lock for the handler so check and write are atomic.
func (s *Server) revisionCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		known, err := strconv.Atoi(c.GetHeader(remote.HeaderRevision))
		if err != nil {
			fail(c, http.StatusBadRequest, "missing or malformed "+remote.HeaderRevision)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if known != s.revision {
			s.metrics.RevisionConflicts.Inc()
			s.log.Info("revision conflict", zap.Int("known", known), zap.Int("current", s.revision))
			fail(c, http.StatusBadRequest, msgUnsynchronized)
			return
		}
		c.Next()
	}
}

// ---------------------------------------------------
// Handlers
// ---------------------------------------------------

func (s *Server) getList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, remote.ListResponse{Status: statusOK, List: s.snapshot(), Revision: s.revision})
}

func (s *Server) getItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "element not found")
		return
	}
	c.JSON(http.StatusOK, remote.ItemResponse{Status: statusOK, Element: s.items[i], Revision: s.revision})
}

// The handlers below run inside revisionCheck with mu held.

func (s *Server) patchList(c *gin.Context) {
	var req remote.ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	seen := make(map[string]bool, len(req.List))
	for _, d := range req.List {
		if msg := validate(d); msg != "" {
			fail(c, http.StatusBadRequest, msg)
			return
		}
		if seen[d.ID] {
			fail(c, http.StatusBadRequest, "duplicate id "+d.ID)
			return
		}
		seen[d.ID] = true
	}
	s.items = append([]remote.TodoItemDto{}, req.List...)
	s.bump()
	c.JSON(http.StatusOK, remote.ListResponse{Status: statusOK, List: s.snapshot(), Revision: s.revision})
}

func (s *Server) addItem(c *gin.Context) {
	var req remote.ElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if msg := validate(req.Element); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if s.index(req.Element.ID) >= 0 {
		fail(c, http.StatusBadRequest, "duplicate id "+req.Element.ID)
		return
	}
	s.items = append(s.items, req.Element)
	s.bump()
	c.JSON(http.StatusOK, remote.ItemResponse{Status: statusOK, Element: req.Element, Revision: s.revision})
}

func (s *Server) updateItem(c *gin.Context) {
	var req remote.ElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	id := c.Param("id")
	if req.Element.ID != id {
		fail(c, http.StatusBadRequest, "element id does not match path")
		return
	}
	if msg := validate(req.Element); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	i := s.index(id)
	if i < 0 {
		fail(c, http.StatusNotFound, "element not found")
		return
	}
	s.items[i] = req.Element
	s.bump()
	c.JSON(http.StatusOK, remote.ItemResponse{Status: statusOK, Element: req.Element, Revision: s.revision})
}

func (s *Server) deleteItem(c *gin.Context) {
	i := s.index(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "element not found")
		return
	}
	gone := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.bump()
	c.JSON(http.StatusOK, remote.ItemResponse{Status: statusOK, Element: gone, Revision: s.revision})
}

// ---------------------------------------------------
// helpers (mu held)
// ---------------------------------------------------

func (s *Server) bump() {
	s.revision++
	s.metrics.Revision.Set(float64(s.revision))
	s.metrics.Items.Set(float64(len(s.items)))
}

func (s *Server) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) snapshot() []remote.TodoItemDto {
	return append([]remote.TodoItemDto{}, s.items...)
}

func validate(d remote.TodoItemDto) string {
	if strings.TrimSpace(d.ID) == "" {
		return "element id is required"
	}
	if strings.TrimSpace(d.Text) == "" {
		return "element text is required"
	}
	switch d.Importance {
	case "low", "basic", "important":
	default:
		return "unknown importance " + strconv.Quote(d.Importance)
	}
	return ""
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
