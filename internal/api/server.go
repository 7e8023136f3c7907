// Package api serves the trading platform's REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ai-trader/internal/auth"
	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
	"ai-trader/internal/quotes"
	"ai-trader/internal/signals"
	"ai-trader/internal/store"
	"ai-trader/internal/trading"
)

// Server serves the trading REST API.
type Server struct {
	engine   *trading.Engine
	quotes   quotes.Provider
	signals  *signals.Generator
	sessions *auth.Manager
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(engine *trading.Engine, qp quotes.Provider, sg *signals.Generator, sm *auth.Manager, logger zerolog.Logger) *Server {
	return &Server{
		engine:   engine,
		quotes:   qp,
		signals:  sg,
		sessions: sm,
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleLogin)
	mux.HandleFunc("DELETE /api/sessions", s.authed(s.handleLogout))

	mux.HandleFunc("POST /api/portfolios", s.authed(s.handleCreatePortfolio))
	mux.HandleFunc("GET /api/portfolios", s.authed(s.handleListPortfolios))
	mux.HandleFunc("GET /api/portfolios/{id}", s.authed(s.handleGetPortfolio))

	mux.HandleFunc("POST /api/orders", s.authed(s.handleSubmitOrder))
	mux.HandleFunc("GET /api/orders", s.authed(s.handleListOrders))
	mux.HandleFunc("GET /api/orders/{id}", s.authed(s.handleGetOrder))
	mux.HandleFunc("DELETE /api/orders/{id}", s.authed(s.handleCancelOrder))

	mux.HandleFunc("GET /api/quotes/{symbol}", s.authed(s.handleQuote))
	mux.HandleFunc("GET /api/signals/{symbol}", s.authed(s.handleSignal))
}

// Handler returns the fully assembled http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logMiddleware(corsMiddleware(mux))
}

type ctxKey string

const ownerKey ctxKey = "owner"

// authed wraps a handler with Bearer-token session validation and puts
// the owner ID in the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		session, err := s.sessions.Validate(token)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, session.OwnerID)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeErr maps a domain error to its HTTP status.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var vErr *apperrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, apperrors.ErrNotAuthenticated), errors.Is(err, apperrors.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperrors.ErrPortfolioNotFound),
		errors.Is(err, apperrors.ErrOrderNotFound),
		errors.Is(err, apperrors.ErrSymbolNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrInsufficientPosition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, apperrors.ErrInvalidStateTransition),
		errors.Is(err, apperrors.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewValidationError("body", nil, "invalid JSON")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	session, err := s.sessions.Login(req.OwnerID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionJSON{
		Token:     session.Token,
		OwnerID:   session.OwnerID,
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	p, err := s.engine.CreatePortfolio(r.Context(), ownerFrom(r), req.InitialCash)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convertPortfolio(p))
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.engine.ListPortfolios(r.Context(), ownerFrom(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	out := make([]portfolioJSON, 0, len(portfolios))
	for i := range portfolios {
		out = append(out, convertPortfolio(&portfolios[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetPortfolio(r.Context(), ownerFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertPortfolio(p))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	order, err := s.engine.SubmitOrder(r.Context(), ownerFrom(r), trading.OrderRequest{
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Side:        models.OrderSide(strings.ToUpper(req.Side)),
		Type:        models.OrderType(strings.ToUpper(req.Type)),
		Quantity:    req.Quantity,
		Price:       req.Price,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
	})
	if err != nil {
		// A rejected order is persisted; return it with the error status.
		if order != nil && order.Status == models.OrderStatusRejected {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, apperrors.ErrSymbolNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, convertOrder(order))
			return
		}
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convertOrder(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.OrderFilter{
		PortfolioID: q.Get("portfolio_id"),
		Symbol:      strings.ToUpper(q.Get("symbol")),
		Status:      models.OrderStatus(strings.ToUpper(q.Get("status"))),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErr(w, apperrors.NewValidationError("limit", v, "must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	orders, err := s.engine.ListOrders(r.Context(), ownerFrom(r), filter)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	out := make([]orderJSON, 0, len(orders))
	for i := range orders {
		out = append(out, convertOrder(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.GetOrder(r.Context(), ownerFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertOrder(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.CancelOrder(r.Context(), ownerFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertOrder(order))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.GetQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteJSON{
		Symbol:        q.Symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Timestamp:     q.Timestamp,
	})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	p, err := s.signals.Predict(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionJSON{
		Symbol:       p.Symbol,
		Direction:    string(p.Direction),
		CurrentPrice: p.CurrentPrice,
		TargetPrice:  p.TargetPrice,
		Confidence:   p.Confidence,
		Horizon:      p.Horizon,
		GeneratedAt:  p.GeneratedAt,
	})
}
