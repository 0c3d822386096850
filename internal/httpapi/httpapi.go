package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/logger"
	"motopos/backend/internal/service"
)

var errMalformedBody = errors.New("malformed request body")

var (
	staffRoles = []string{"cashier", "admin"}
	adminRoles = []string{"admin"}
)

type Options struct {
	AllowedOrigin string
	// LoginPerMinute caps login attempts per client address.
	LoginPerMinute int
	Logger         *logger.Logger
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *loginLimiter
	csrf          *csrfSigner
	validate      *validator.Validate
	log           *logger.Logger
	gatherer      prometheus.Gatherer
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.LoginPerMinute <= 0 {
		opts.LoginPerMinute = 10
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  newLoginLimiter(opts.LoginPerMinute),
		csrf:          newCSRFSigner(),
		validate:      newValidator(),
		log:           opts.Logger,
		gatherer:      opts.Gatherer,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// loginLimiter keeps one token bucket per client address.
type loginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLoginLimiter(perMinute int) *loginLimiter {
	return &loginLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *loginLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		a.requestLogger,
		middleware.Recoverer,
		a.securityHeaders,
		a.csrfGuard,
	)

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Get("/parts", a.requireAuth(a.handleListParts, staffRoles...))
		r.Post("/parts", a.requireAuth(a.handleCreatePart, adminRoles...))
		r.Post("/inventory/receipts", a.requireAuth(a.handleReceiveStock, adminRoles...))

		r.Route("/carts/{terminal}", func(r chi.Router) {
			r.Get("/", a.requireAuth(a.handleGetCart, staffRoles...))
			r.Delete("/", a.requireAuth(a.handleClearCart, staffRoles...))
			r.Post("/items", a.requireAuth(a.handleAddPart, staffRoles...))
			r.Post("/services", a.requireAuth(a.handleAddService, staffRoles...))
			r.Patch("/items/{line}", a.requireAuth(a.handleUpdateLine, staffRoles...))
			r.Delete("/items/{line}", a.requireAuth(a.handleRemoveLine, staffRoles...))
			r.Post("/checkout", a.requireAuth(a.handleCheckout, staffRoles...))
			r.Post("/edit/cancel", a.requireAuth(a.handleCancelEdit, staffRoles...))
		})

		r.Get("/sales", a.requireAuth(a.handleListSales, staffRoles...))
		r.Get("/sales/{id}", a.requireAuth(a.handleGetSale, staffRoles...))
		r.Delete("/sales/{id}", a.requireAuth(a.handleDeleteSale, adminRoles...))
		r.Post("/sales/{id}/edit", a.requireAuth(a.handleEditSale, staffRoles...))

		r.Get("/debts", a.requireAuth(a.handleListDebts, staffRoles...))
		r.Post("/debts/{id}/payments", a.requireAuth(a.handlePayDebt, staffRoles...))

		r.Get("/reports/sales", a.requireAuth(a.handleSalesReport, staffRoles...))
		r.Get("/reports/inventory", a.requireAuth(a.handleInventoryReport, staffRoles...))
		r.Get("/reports/reconciliation", a.requireAuth(a.handleReconciliation, adminRoles...))
		r.Get("/exports/vat.xml", a.requireAuth(a.handleVATExport, adminRoles...))
		r.Get("/exports/sales.xlsx", a.requireAuth(a.handleSalesExcel, adminRoles...))

		r.Get("/work-orders", a.requireAuth(a.handleListWorkOrders, staffRoles...))
		r.Post("/work-orders", a.requireAuth(a.handleCreateWorkOrder, staffRoles...))
		r.Patch("/work-orders/{id}/status", a.requireAuth(a.handleWorkOrderStatus, staffRoles...))

		r.Get("/audit-logs", a.requireAuth(a.handleAuditLogs, adminRoles...))
		r.Get("/users/cashiers", a.requireAuth(a.handleListCashiers, adminRoles...))
		r.Post("/users/cashiers", a.requireAuth(a.handleCreateCashier, adminRoles...))
	})

	return r
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		ctx := a.log.WithField(r.Context(), "actor", actor.Username)
		next(w, r.WithContext(service.WithActor(ctx, actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := a.log.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.log.Zerolog(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(startedAt)).
			Msg("request")
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.csrf.Token()})
}

// decodeBody decodes a JSON request body and runs struct validation on it.
func (a *API) decodeBody(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return a.validate.Struct(dest)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorCode(w, status, "", err)
}

// writeErrorCode hides the message of 5xx errors; 4xx messages are meant for
// the cashier.
func writeErrorCode(w http.ResponseWriter, status int, code string, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	body := map[string]any{"error": msg}
	if code != "" {
		body["code"] = code
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		body["error"] = "validation failed"
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
