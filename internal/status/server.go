package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"operatorMonitor/internal/chain"
	"operatorMonitor/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// HealthSource reports chain gateway health.
type HealthSource interface {
	Health(ctx context.Context) chain.Health
}

// Server exposes operator status over HTTP.
type Server struct {
	addr   string
	router *chi.Mux
	store  storage.ValidatorStore
	health HealthSource
	logger *zap.Logger
}

// NewServer builds the router. health may be nil when no chain is configured.
func NewServer(addr string, store storage.ValidatorStore, health HealthSource, logger *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("validator store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		store:  store,
		health: health,
		logger: logger.Named("status"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/operators", s.handleOperators)
	s.router.Get("/operators/{address}", s.handleOperator)
	s.router.Handle("/metrics", promhttp.Handler())

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown status server: %w", err)
		}
		return nil
	}
}

type healthResponse struct {
	Status       string `json:"status"`
	Connected    bool   `json:"connected"`
	CurrentBlock uint64 `json:"current_block,omitempty"`
	ChainID      uint64 `json:"chain_id,omitempty"`
	Network      string `json:"network,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	h := s.health.Health(r.Context())
	resp := healthResponse{
		Status:       "ok",
		Connected:    h.Connected,
		CurrentBlock: h.CurrentBlock,
		ChainID:      h.ChainID,
		Network:      h.Network,
	}
	code := http.StatusOK
	if !h.Connected {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
		if h.Err != nil {
			resp.Error = h.Err.Error()
		}
	}
	writeJSON(w, code, resp)
}

type operatorResponse struct {
	Operator   string   `json:"operator"`
	Validators []string `json:"validators"`
	Count      int      `json:"count"`
}

func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.GetAllOperators(r.Context())
	if err != nil {
		s.logger.Warn("list operators failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "validator store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operators": all,
		"count":     len(all),
	})
}

func (s *Server) handleOperator(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid operator address")
		return
	}
	operator := common.HexToAddress(raw)

	validators, err := s.store.GetOperatorValidators(r.Context(), operator)
	if err != nil {
		s.logger.Warn("get operator failed", zap.String("operator", raw), zap.Error(err))
		writeError(w, http.StatusBadGateway, "validator store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, operatorResponse{
		Operator:   storage.OperatorKey(operator),
		Validators: validators,
		Count:      len(validators),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
