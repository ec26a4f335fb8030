package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/axiomesh/proxygov/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Guardian is the read side of core.Guardian served over HTTP.
type Guardian interface {
	Cursor() (core.Cursor, bool)
	Implementation() (common.Address, bool)
	ProxyAdmin() (common.Address, bool)
	Developer() common.Address
	Executed(id uint64) (*core.ExecutedProposal, error)
	Stats() map[string]int64
}

var _ Guardian = (*core.Guardian)(nil)

type Status struct {
	Cursor         *core.Cursor    `json:"cursor"`
	Implementation *common.Address `json:"implementation"`
	ProxyAdmin     *common.Address `json:"proxy_admin"`
	Developer      common.Address  `json:"developer"`
}

type Server struct {
	guardian Guardian
	logger   logrus.FieldLogger
	router   *mux.Router
	server   *http.Server
}

func NewServer(listen string, guardian Guardian, logger logrus.FieldLogger) *Server {
	s := &Server{
		guardian: guardian,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequest)

	s.router.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/executed/{id:[0-9]+}", s.getExecuted).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics", s.getMetrics).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background and returns once the port is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.server.Addr)
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("err", err).Error("Http server stopped")
		}
	}()
	s.logger.WithField("addr", ln.Addr().String()).Info("Http server started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Http request")
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status := &Status{Developer: s.guardian.Developer()}
	if cursor, ok := s.guardian.Cursor(); ok {
		status.Cursor = &cursor
	}
	if impl, ok := s.guardian.Implementation(); ok {
		status.Implementation = &impl
	}
	if admin, ok := s.guardian.ProxyAdmin(); ok {
		status.ProxyAdmin = &admin
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) getExecuted(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	record, err := s.guardian.Executed(id)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, core.ErrExecutedProposalNotFound) {
			code = http.StatusNotFound
		}
		s.writeError(w, code, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.guardian.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithField("err", err).Warn("Write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
