// Package devserver is a self-contained local backend for the canvas
// client: the auth exchange, the project and file catalogs, and the
// terminal channel, all in memory. It exists so the client can run and be
// exercised end to end without the hosted execution environment.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/codecanvas/pkg/logging"
)

const tokenTTL = 60 * time.Minute

// Config tunes the dev server.
type Config struct {
	Bind      string
	JWTSecret string
	Logger    *logging.Logger
}

type user struct {
	ID       string
	Email    string
	Name     string
	Password string
}

type project struct {
	ID          string
	Name        string
	Description string
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type file struct {
	ID          string
	ProjectID   string
	Name        string
	Path        string
	Content     string
	IsDirectory bool
}

// Server holds the in-memory backend state.
type Server struct {
	mu       sync.Mutex
	users    map[string]*user
	byEmail  map[string]string
	projects map[string]*project
	files    map[string]*file

	bind     string
	secret   []byte
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// New constructs a dev server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	if cfg.Bind == "" {
		cfg.Bind = "127.0.0.1:8000"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "canvas-dev-secret"
	}
	return &Server{
		users:    make(map[string]*user),
		byEmail:  make(map[string]string),
		projects: make(map[string]*project),
		files:    make(map[string]*file),
		bind:     cfg.Bind,
		secret:   []byte(cfg.JWTSecret),
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/token", s.handleTokenForm)
		r.With(s.authMiddleware).Get("/users/me", s.handleMe)
	})

	router.Route("/projects", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)
		r.Get("/{projectID}", s.handleGetProject)
		r.Delete("/{projectID}", s.handleDeleteProject)
		r.Get("/{projectID}/files", s.handleListFiles)
		r.Post("/{projectID}/files", s.handleCreateFile)
	})

	router.Route("/files", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/{fileID}", s.handleGetFile)
		r.Put("/{fileID}/content", s.handleUpdateFileContent)
		r.Put("/{fileID}/rename", s.handleRenameFile)
		r.Delete("/{fileID}", s.handleDeleteFile)
	})

	router.Get("/ws/{principalID}/{projectID}", s.handleTerminal)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.bind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info(logging.CategoryNetwork, "devserver_start", "dev server listening", map[string]any{
		"bind": s.bind,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// issueToken signs a bearer token for the user.
func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// validateToken returns the subject user id for a signed token.
func (s *Server) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func newID() string {
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail matches the backend's error body shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
