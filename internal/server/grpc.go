package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"FairSwap/internal/core"
	"FairSwap/internal/cpmm"
	"FairSwap/internal/ingestion"
	"FairSwap/internal/ledger"
	"FairSwap/internal/observability"
	"FairSwap/internal/persistence"
	"FairSwap/internal/pool"
	"FairSwap/internal/projection"
	"FairSwap/internal/query"
	"FairSwap/internal/settlement"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer wraps the gRPC server and the HTTP/JSON API mux.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	deps          *ServerDeps
	healthChecker *observability.HealthChecker
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	AdminService  *ingestion.AdminService
	Core          *core.Core
	ReplayLoader  *persistence.ReplayLoader
	PoolConfig    pool.Config
	Convert       ledger.Converter
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

// NewGRPCServer creates the server pair. The gRPC listener carries the
// standard health and reflection services for orchestration tooling;
// the application API is HTTP/JSON on the gateway mux.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		deps:          deps,
		healthChecker: deps.HealthChecker,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API server (blocking).
func (s *GRPCServer) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/metrics", promhttp.Handler())
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP API listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *GRPCServer) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/pairs", s.handleListPairs},
		{"GET", "/v1/pairs/{asset_id}", s.handleGetPair},
		{"GET", "/v1/pairs/{asset_id}/quote", s.handleQuote},
		{"GET", "/v1/pairs/{asset_id}/queues", s.handleQueues},
		{"GET", "/v1/pairs/{asset_id}/settlements", s.handleSettlementHistory},
		{"GET", "/v1/accounts/{account}/balances", s.handleAccountBalances},
		{"GET", "/v1/accounts/{account}/balances/{asset_id}", s.handleGetBalance},
		{"GET", "/v1/accounts/{account}/transfers", s.handleTransferHistory},
		{"POST", "/v1/admin/deposits", s.handleInjectDeposit},
		{"POST", "/v1/admin/pairs", s.handleInjectCreatePair},
		{"POST", "/v1/admin/settle", s.handleInjectSettle},
		{"POST", "/v1/admin/projections/rebuild", s.handleRebuildProjections},
		{"GET", "/v1/admin/integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/admin/status", s.handleStatus},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("route %s %s: %w", r.method, r.pattern, err)
		}
	}
	return nil
}

// ============================================================================
// Pair and quote handlers
// ============================================================================

func (s *GRPCServer) handleListPairs(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	pairs, err := s.deps.QueryService.ListPairs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pairs": pairs})
}

func (s *GRPCServer) handleGetPair(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	assetID, err := parseAssetID(pathParams["asset_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pair, err := s.deps.QueryService.GetPair(r.Context(), assetID)
	if err == query.ErrPairNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleQuote prices a hypothetical swap against the live reserves.
// The quote reads the core directly rather than the projection so it
// reflects the exact state the next command would see.
func (s *GRPCServer) handleQuote(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	assetID, err := parseAssetID(pathParams["asset_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil || amount == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("amount must be a positive integer"))
		return
	}

	direction := q.Get("direction")
	basis := q.Get("basis")
	if basis == "" {
		basis = "input"
	}

	pair, err := s.deps.Core.PairSnapshot(ledger.AssetID(assetID))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	input, output, err := priceQuote(s.deps.PoolConfig.Fee, s.deps.Convert, pair, direction, basis, amount)
	if err != nil {
		if errors.Is(err, errBadQuoteParam) {
			writeError(w, http.StatusBadRequest, err)
		} else {
			writeError(w, http.StatusUnprocessableEntity, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id":  assetID,
		"direction": direction,
		"basis":     basis,
		"input":     input,
		"output":    output,
	})
}

var errBadQuoteParam = errors.New("bad quote parameter")

// priceQuote prices a hypothetical swap the way the pool ledger does:
// the token reserve runs through the converter before the curve, and
// token-denominated amounts cross the converter at the boundary.
func priceQuote(fee cpmm.Fee, convert ledger.Converter, pair pool.Pair, direction, basis string, amount uint64) (input, output uint64, err error) {
	tokenReserve, err := convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return 0, 0, err
	}

	switch direction {
	case "currency_to_asset":
		switch basis {
		case "input":
			out, err := fee.OutputFor(amount, pair.CurrencyReserve, tokenReserve)
			if err != nil {
				return 0, 0, err
			}
			output, err = convert.CurrencyToAsset(out)
			if err != nil {
				return 0, 0, err
			}
			return amount, output, nil
		case "output":
			want, err := convert.AssetToCurrency(amount)
			if err != nil {
				return 0, 0, err
			}
			input, err = fee.InputFor(want, pair.CurrencyReserve, tokenReserve)
			if err != nil {
				return 0, 0, err
			}
			return input, amount, nil
		}
	case "asset_to_currency":
		switch basis {
		case "input":
			in, err := convert.AssetToCurrency(amount)
			if err != nil {
				return 0, 0, err
			}
			output, err = fee.OutputFor(in, tokenReserve, pair.CurrencyReserve)
			if err != nil {
				return 0, 0, err
			}
			return amount, output, nil
		case "output":
			in, err := fee.InputFor(amount, tokenReserve, pair.CurrencyReserve)
			if err != nil {
				return 0, 0, err
			}
			input, err = convert.CurrencyToAsset(in)
			if err != nil {
				return 0, 0, err
			}
			return input, amount, nil
		}
	default:
		return 0, 0, fmt.Errorf("%w: direction must be currency_to_asset or asset_to_currency", errBadQuoteParam)
	}
	return 0, 0, fmt.Errorf("%w: basis must be input or output", errBadQuoteParam)
}

func (s *GRPCServer) handleQueues(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	assetID, err := parseAssetID(pathParams["asset_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	asset := ledger.AssetID(assetID)
	if _, err := s.deps.Core.PairSnapshot(asset); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id": assetID,
		"currency_to_asset": map[string]interface{}{
			"depth": s.deps.Core.QueueDepth(asset, settlement.CurrencyToAsset),
			"total": s.deps.Core.QueueTotal(asset, settlement.CurrencyToAsset),
		},
		"asset_to_currency": map[string]interface{}{
			"depth": s.deps.Core.QueueDepth(asset, settlement.AssetToCurrency),
			"total": s.deps.Core.QueueTotal(asset, settlement.AssetToCurrency),
		},
	})
}

func (s *GRPCServer) handleSettlementHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	assetID, err := parseAssetID(pathParams["asset_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	limit, afterSeq := paginationParams(r, 50, 500)

	history, err := s.deps.QueryService.GetSettlementHistory(r.Context(), assetID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": history})
}

// ============================================================================
// Account handlers
// ============================================================================

func (s *GRPCServer) handleAccountBalances(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, err := uuid.Parse(pathParams["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid account: %w", err))
		return
	}

	resp, err := s.deps.QueryService.GetAccountBalances(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *GRPCServer) handleGetBalance(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, err := uuid.Parse(pathParams["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid account: %w", err))
		return
	}
	assetID, err := parseAssetID(pathParams["asset_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bal, err := s.deps.QueryService.GetBalance(r.Context(), account, assetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *GRPCServer) handleTransferHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	account, err := uuid.Parse(pathParams["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid account: %w", err))
		return
	}

	limit, afterSeq := paginationParams(r, 100, 500)

	entries, err := s.deps.QueryService.GetTransferHistory(r.Context(), account, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": entries})
}

// ============================================================================
// Admin handlers
// ============================================================================

type depositRequest struct {
	Account        string `json:"account"`
	AssetID        uint32 `json:"asset_id"`
	CurrencyAmount uint64 `json:"currency_amount"`
	TokenAmount    uint64 `json:"token_amount"`
}

func (s *GRPCServer) handleInjectDeposit(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid account: %w", err))
		return
	}

	if err := s.deps.AdminService.InjectDeposit(r.Context(), account, req.AssetID,
		req.CurrencyAmount, req.TokenAmount); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type createPairRequest struct {
	Provider         string `json:"provider"`
	AssetID          uint32 `json:"asset_id"`
	LiquidityTokenID uint32 `json:"liquidity_token_id"`
	CurrencyAmount   uint64 `json:"currency_amount"`
	TokenAmount      uint64 `json:"token_amount"`
}

func (s *GRPCServer) handleInjectCreatePair(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req createPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	provider, err := uuid.Parse(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid provider: %w", err))
		return
	}

	if err := s.deps.AdminService.InjectCreatePair(r.Context(), provider, req.AssetID,
		req.LiquidityTokenID, req.CurrencyAmount, req.TokenAmount); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type settleRequest struct {
	Caller  string `json:"caller"`
	AssetID uint32 `json:"asset_id"`
}

func (s *GRPCServer) handleInjectSettle(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	caller, err := uuid.Parse(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid caller: %w", err))
		return
	}

	if err := s.deps.AdminService.InjectSettle(r.Context(), caller, req.AssetID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *GRPCServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
}

func (s *GRPCServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *GRPCServer) handleStatus(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	tip, err := s.deps.ReplayLoader.Tip(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	persistedSeq := int64(-1)
	if tip != nil {
		persistedSeq = tip.Sequence
	}

	hash := s.deps.Core.StateHash()
	dedup := s.deps.Core.DedupStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"next_sequence":      s.deps.Core.Sequence(),
		"persisted_sequence": persistedSeq,
		"height":             s.deps.Core.Height(),
		"state_hash":         fmt.Sprintf("%x", hash[:]),
		"uptime_seconds":     int64(time.Since(s.deps.StartTime).Seconds()),
		"dedup": map[string]int64{
			"lru_hits":      dedup.HitsLRU,
			"postgres_hits": dedup.HitsPostgres,
			"lookup_errors": dedup.LookupErrors,
		},
	})
}

// ============================================================================
// Helpers
// ============================================================================

func parseAssetID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid asset_id: %w", err)
	}
	return uint32(id), nil
}

func paginationParams(r *http.Request, defLimit, maxLimit int) (int, *int64) {
	q := r.URL.Query()

	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}

	var afterSeq *int64
	if v := q.Get("after_sequence"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			afterSeq = &n
		}
	}

	return limit, afterSeq
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
