package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/auth"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	"github.com/mkasongo/kembo-wallet/internal/services"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

const idempotencyHeader = "Idempotency-Key"

func SetupRouter(
	wallet *services.WalletService,
	savings *services.SavingsService,
	referrals *services.ReferralService,
	redisClient redis.RedisClient,
	jwtSecret string,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/register", func(w http.ResponseWriter, req *http.Request) {
		var body services.RegisterRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		user, err := wallet.Register(req.Context(), body)
		if err != nil {
			slog.Error("register failed", "username", body.Username, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"account_id": user.ID,
			"username":   user.Username,
			"currency":   user.Currency,
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/login", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		token, err := wallet.Login(req.Context(), body.Username, body.Password)
		if err != nil {
			slog.Warn("login failed", "username", body.Username, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.AuthMiddleware(redisClient, jwtSecret))

	protected.HandleFunc("/deposit", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		var body services.DepositRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		if body.AccountID == "" {
			body.AccountID = callerID
		}
		body.IdempotencyKey = req.Header.Get(idempotencyHeader)
		result, err := wallet.Deposit(req.Context(), callerID, body)
		if err != nil {
			slog.Error("deposit failed", "account_id", body.AccountID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/withdraw", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		var body services.WithdrawRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		if body.AccountID == "" {
			body.AccountID = callerID
		}
		body.IdempotencyKey = req.Header.Get(idempotencyHeader)
		result, err := wallet.Withdraw(req.Context(), callerID, body)
		if err != nil {
			slog.Error("withdrawal failed", "account_id", body.AccountID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/transfer", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		var body services.TransferRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		if body.SenderAccountID == "" {
			body.SenderAccountID = callerID
		}
		body.IdempotencyKey = req.Header.Get(idempotencyHeader)
		result, err := wallet.Transfer(req.Context(), callerID, body)
		if err != nil {
			slog.Error("transfer failed", "sender", body.SenderAccountID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/balance", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		acc, err := wallet.Balance(req.Context(), callerID, callerID)
		if err != nil {
			slog.Error("get balance failed", "account_id", callerID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}).Methods(http.MethodGet)

	protected.HandleFunc("/history", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		limit := 20
		if raw := req.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}
		records, cursor, err := wallet.History(req.Context(), callerID, callerID, limit, req.URL.Query().Get("cursor"))
		if err != nil {
			slog.Error("get history failed", "account_id", callerID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records":     records,
			"next_cursor": cursor,
		})
	}).Methods(http.MethodGet)

	protected.HandleFunc("/goals", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		goals, err := savings.ListGoals(req.Context(), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goals)
	}).Methods(http.MethodGet)

	protected.HandleFunc("/goals", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		var body services.CreateGoalRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		goal, err := savings.CreateGoal(req.Context(), callerID, body)
		if err != nil {
			slog.Error("create goal failed", "account_id", callerID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/goals/{id}/add", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		goalID := mux.Vars(req)["id"]
		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		goal, err := savings.AddToGoal(req.Context(), callerID, goalID, body.Amount, req.Header.Get(idempotencyHeader))
		if err != nil {
			slog.Error("add to goal failed", "goal_id", goalID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/goals/{id}/withdraw", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		goalID := mux.Vars(req)["id"]
		var body struct {
			Amount int64 `json:"amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		goal, err := savings.WithdrawFromGoal(req.Context(), callerID, goalID, body.Amount, req.Header.Get(idempotencyHeader))
		if err != nil {
			slog.Error("goal withdrawal failed", "goal_id", goalID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/goals/{id}/pause", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		if err := savings.PauseGoal(req.Context(), callerID, mux.Vars(req)["id"]); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
	}).Methods(http.MethodPost)

	protected.HandleFunc("/goals/{id}/resume", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		if err := savings.ResumeGoal(req.Context(), callerID, mux.Vars(req)["id"]); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
	}).Methods(http.MethodPost)

	protected.HandleFunc("/goals/{id}", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		if err := savings.DeleteGoal(req.Context(), callerID, mux.Vars(req)["id"]); err != nil {
			slog.Error("delete goal failed", "goal_id", mux.Vars(req)["id"], "error", err)
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	protected.HandleFunc("/referrals/code", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		link, err := referrals.GenerateCode(req.Context(), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, link)
	}).Methods(http.MethodPost)

	protected.HandleFunc("/referrals/redeem", func(w http.ResponseWriter, req *http.Request) {
		callerID := auth.CallerID(req.Context())
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed body", pkgerrors.ErrInvalidArgument))
			return
		}
		if err := referrals.Redeem(req.Context(), callerID, body.Code); err != nil {
			slog.Error("referral redemption failed", "account_id", callerID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "redeemed"})
	}).Methods(http.MethodPost)

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		RequestCounter.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", recorder.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain sentinels onto HTTP statuses. Unrecognized
// errors surface as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case stderrors.Is(err, pkgerrors.ErrInvalidArgument),
		stderrors.Is(err, pkgerrors.ErrInvalidMethod):
		status = http.StatusBadRequest
	case stderrors.Is(err, pkgerrors.ErrUnauthenticated),
		stderrors.Is(err, pkgerrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case stderrors.Is(err, pkgerrors.ErrPermissionDenied):
		status = http.StatusForbidden
	case stderrors.Is(err, pkgerrors.ErrUserNotFound),
		stderrors.Is(err, pkgerrors.ErrAccountNotFound),
		stderrors.Is(err, pkgerrors.ErrRecipientNotFound),
		stderrors.Is(err, pkgerrors.ErrTransactionNotFound),
		stderrors.Is(err, pkgerrors.ErrGoalNotFound),
		stderrors.Is(err, pkgerrors.ErrReferralNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, pkgerrors.ErrUsernameExists),
		stderrors.Is(err, pkgerrors.ErrAlreadyReferred),
		stderrors.Is(err, pkgerrors.ErrSelfTransferNotAllowed),
		stderrors.Is(err, pkgerrors.ErrSelfReferralNotAllowed),
		stderrors.Is(err, pkgerrors.ErrGoalNotActive),
		stderrors.Is(err, pkgerrors.ErrGoalNotCompleted),
		stderrors.Is(err, pkgerrors.ErrRequestInFlight),
		stderrors.Is(err, pkgerrors.ErrVersionConflict):
		status = http.StatusConflict
	case stderrors.Is(err, pkgerrors.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case stderrors.Is(err, pkgerrors.ErrRateUnavailable):
		status = http.StatusServiceUnavailable
	case stderrors.Is(err, pkgerrors.ErrInternal):
		message = "internal error"
	}

	writeJSON(w, status, map[string]string{"error": message})
}

// statusRecorder captures the response status for the request metrics.
// It starts at 200 so handlers that never call WriteHeader are still
// counted correctly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
