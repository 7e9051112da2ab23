package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/0xproject/coordinator-server/internal/coordinator"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/ratelimit"
)

// requestTransactionMaxAttempts/requestTransactionWindow cap how many
// requests a single remote address may submit per window, independent
// of the per-chain selective-delay throttling the approval pipeline
// itself applies.
const (
	requestTransactionMaxAttempts = 60
	requestTransactionWindow      = time.Minute
)

// Server wires the coordinator's three request-surface operations onto
// an HTTP mux. Routing is go-chi, mirroring the request/response,
// logging and recover middleware chain idiomatic to chi-based
// services.
type Server struct {
	router  *chi.Mux
	svc     *coordinator.Coordinator
	log     *zap.Logger
	limiter *ratelimit.Limiter
}

// NewServer builds the HTTP handler for the coordinator's request
// surface.
func NewServer(svc *coordinator.Coordinator, log *zap.Logger) *Server {
	s := &Server{
		svc:     svc,
		log:     log,
		limiter: ratelimit.New(requestTransactionMaxAttempts, requestTransactionWindow),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(zapRequestLogger(log))

	r.Get("/v2/configuration", s.handleReadConfiguration)
	r.With(s.rateLimitBySourceIP).Post("/v2/request_transaction", s.handleRequestTransaction)
	r.With(s.rateLimitBySourceIP).Post("/v2/soft_cancels", s.handleSoftCancels)

	s.router = r
	return s
}

// rateLimitBySourceIP rejects requests once the caller's remote address
// has exhausted its window, returning the same CoordinatorError
// envelope as every other rejection path.
func (s *Server) rateLimitBySourceIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !s.limiter.Allow(key) {
			writeError(w, coordinatorerr.NewRateLimited("too many requests from this address"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleReadConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg := s.svc.ReadConfiguration()
	writeJSON(w, http.StatusOK, configurationResponse{
		ExpirationDurationSeconds: cfg.ExpirationDurationSeconds,
		SelectiveDelayMS:          cfg.SelectiveDelayMS,
		SupportedChainIDs:         cfg.SupportedChainIDs,
	})
}

func (s *Server) handleRequestTransaction(w http.ResponseWriter, r *http.Request) {
	chainID, verr := chainIDFromQuery(r)
	if verr != nil {
		writeError(w, verr)
		return
	}

	var body requestTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, coordinatorerr.NewSchemaViolation("body", coordinatorerr.ValidationIncorrectFormat, "request body is not valid JSON"))
		return
	}

	req, verr := body.toDomain(chainID)
	if verr != nil {
		writeError(w, verr)
		return
	}

	resp, err := s.svc.RequestApproval(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, approvalResponseFromDomain(resp))
}

func (s *Server) handleSoftCancels(w http.ResponseWriter, r *http.Request) {
	chainID, verr := chainIDFromQuery(r)
	if verr != nil {
		writeError(w, verr)
		return
	}

	var body softCancelsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, coordinatorerr.NewSchemaViolation("body", coordinatorerr.ValidationIncorrectFormat, "request body is not valid JSON"))
		return
	}
	hashes, verr := body.toDomain()
	if verr != nil {
		writeError(w, verr)
		return
	}

	softCancelled, err := s.svc.ListSoftCancelled(r.Context(), chainID, hashes)
	if err != nil {
		writeErr(w, err)
		return
	}

	out := make([]string, len(softCancelled))
	for i, h := range softCancelled {
		out[i] = h.Hex()
	}
	writeJSON(w, http.StatusOK, softCancelsResponse{OrderHashes: out})
}

func chainIDFromQuery(r *http.Request) (int64, *coordinatorerr.CoordinatorError) {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		return 0, coordinatorerr.NewSchemaViolation("chainId", coordinatorerr.ValidationRequiredField, "chainId query parameter is required")
	}
	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, coordinatorerr.NewSchemaViolation("chainId", coordinatorerr.ValidationIncorrectFormat, "chainId must be an integer")
	}
	return chainID, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, err error) {
	ce, ok := err.(*coordinatorerr.CoordinatorError)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:   coordinatorerr.CodeConfigurationError,
			Reason: err.Error(),
		})
		return
	}
	writeError(w, ce)
}

func writeError(w http.ResponseWriter, ce *coordinatorerr.CoordinatorError) {
	writeJSON(w, ce.HTTPStatus(), errorResponseFromDomain(ce))
}

// zapRequestLogger logs each request's method, path and status at Info
// level, following the structured-field discipline the teacher's
// metrics/logging code uses throughout src/chainadapter.
func zapRequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
			)
		})
	}
}
