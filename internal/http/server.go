// Package http serves the society API: public sign-in, the guarded
// listings and mutations, and infrastructure endpoints.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"society/internal/auth"
	"society/internal/core"
	applog "society/internal/log"
	"society/internal/metrics"
	"society/internal/middleware/ratelimit"
	"society/internal/middleware/security"
	"society/internal/middleware/trace"
	"society/internal/services"
)

// API is the cached data surface the handlers read and write through.
type API interface {
	Houses(ctx context.Context) (core.HouseList, error)
	Members(ctx context.Context) ([]core.Member, error)
	Vehicles(ctx context.Context) ([]core.Vehicle, error)
	Payments(ctx context.Context) (core.PaymentList, error)
	Expenditures(ctx context.Context) (core.ExpenditureList, error)
	Dashboard(ctx context.Context) (core.Dashboard, error)
	Reports(ctx context.Context) (core.Reports, error)

	CreateHouse(ctx context.Context, in services.HouseInput) (core.HouseRow, error)
	UpdateHouse(ctx context.Context, id string, in services.HouseUpdate) (core.HouseRow, error)
	DeleteHouse(ctx context.Context, id string) error
	CreateMember(ctx context.Context, in services.MemberInput) (core.MemberRow, error)
	UpdateMember(ctx context.Context, id string, in services.MemberUpdate) (core.MemberRow, error)
	DeleteMember(ctx context.Context, id string) error
	CreateVehicle(ctx context.Context, in services.VehicleInput) (core.VehicleRow, error)
	UpdateVehicle(ctx context.Context, id string, in services.VehicleUpdate) (core.VehicleRow, error)
	DeleteVehicle(ctx context.Context, id string) error
	CreatePayment(ctx context.Context, in services.PaymentInput) (core.PaymentRow, error)
	UpdatePayment(ctx context.Context, id string, in services.PaymentUpdate) (core.PaymentRow, error)
	DeletePayment(ctx context.Context, id string) error
	GenerateMonthlyPayments(ctx context.Context, defaultAmount float64) (int, error)
	CreateExpenditure(ctx context.Context, in any) error
	UpdateExpenditure(ctx context.Context, id string, in any) error
	DeleteExpenditure(ctx context.Context, id string) error

	ExportData() core.Notice
	ImportData() core.Notice
	ResetData() core.Notice
}

// Authenticator checks credentials.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.User, error)
}

// SessionManager resolves and issues browser sessions.
type SessionManager interface {
	auth.Provider
	Start(w http.ResponseWriter, u *auth.User) (string, error)
	End(w http.ResponseWriter)
}

// Deps are the collaborators of the server. Metrics, Limiter and Ready are
// optional.
type Deps struct {
	API           API
	Authenticator Authenticator
	Sessions      SessionManager
	Logger        *applog.Logger
	Metrics       *metrics.Metrics
	Limiter       *ratelimit.Limiter
	// Ready reports whether the backend can serve requests.
	Ready func(ctx context.Context) error
	// DefaultMaintenanceAmount is used when payment generation is
	// requested without an amount.
	DefaultMaintenanceAmount float64
}

type Server struct {
	http.Server
	api           API
	authn         Authenticator
	sessions      SessionManager
	limiter       *ratelimit.Limiter
	ready         func(ctx context.Context) error
	defaultAmount float64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, d Deps) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		api:           d.API,
		authn:         d.Authenticator,
		sessions:      d.Sessions,
		limiter:       d.Limiter,
		ready:         d.Ready,
		defaultAmount: d.DefaultMaintenanceAmount,
	}
	if d.Logger == nil {
		d.Logger = applog.New(applog.DefaultConfig())
	}
	s.Handler = s.routes(d)
	return s
}

func (s *Server) routes(d Deps) *mux.Router {
	detector := security.NewDetector()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})
	r.Use(
		trace.NewMiddleware(d.Logger.WithComponent(applog.ComponentHTTP), detector.ExtractClientIP).Middleware,
		headers.Middleware,
		detector.Middleware(d.Logger),
	)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}

	// Infrastructure, never guarded.
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	app := r.NewRoute().Subrouter()
	if s.limiter != nil {
		var onLimit func(*http.Request)
		if d.Metrics != nil {
			onLimit = func(*http.Request) { d.Metrics.RateLimited() }
		}
		app.Use(s.limiter.Middleware(detector.ExtractClientIP, onLimit))
	}
	app.Use(auth.NewGuard(nil).Middleware(s.sessions))

	app.HandleFunc(auth.PublicPath, s.handleLanding).Methods(http.MethodGet)
	app.HandleFunc(auth.SignInPath, s.handleSession).Methods(http.MethodGet)
	app.HandleFunc(auth.SignInPath, s.handleSignIn).Methods(http.MethodPost)
	app.HandleFunc("/auth/signout", s.handleSignOut).Methods(http.MethodPost)
	app.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)

	app.HandleFunc("/dashboard", list(s.api.Dashboard)).Methods(http.MethodGet)
	app.HandleFunc("/reports", list(s.api.Reports)).Methods(http.MethodGet)
	app.HandleFunc("/houses", list(s.api.Houses)).Methods(http.MethodGet)
	app.HandleFunc("/members", list(s.api.Members)).Methods(http.MethodGet)
	app.HandleFunc("/vehicles", list(s.api.Vehicles)).Methods(http.MethodGet)
	app.HandleFunc("/maintenance", list(s.api.Payments)).Methods(http.MethodGet)
	app.HandleFunc("/expenditures", list(s.api.Expenditures)).Methods(http.MethodGet)

	admin := auth.RequireRole(core.RoleAdmin)
	mutate := func(path string, h http.HandlerFunc, method string) {
		app.Handle(path, admin(h)).Methods(method)
	}
	mutate("/houses", create(houses, s.api.CreateHouse), http.MethodPost)
	mutate("/houses/{id}", update(houses, s.api.UpdateHouse), http.MethodPut)
	mutate("/houses/{id}", remove(houses, s.api.DeleteHouse), http.MethodDelete)
	mutate("/members", create(members, s.api.CreateMember), http.MethodPost)
	mutate("/members/{id}", update(members, s.api.UpdateMember), http.MethodPut)
	mutate("/members/{id}", remove(members, s.api.DeleteMember), http.MethodDelete)
	mutate("/vehicles", create(vehicles, s.api.CreateVehicle), http.MethodPost)
	mutate("/vehicles/{id}", update(vehicles, s.api.UpdateVehicle), http.MethodPut)
	mutate("/vehicles/{id}", remove(vehicles, s.api.DeleteVehicle), http.MethodDelete)
	mutate("/maintenance", create(payments, s.api.CreatePayment), http.MethodPost)
	mutate("/maintenance/generate", s.handleGeneratePayments, http.MethodPost)
	mutate("/maintenance/{id}", update(payments, s.api.UpdatePayment), http.MethodPut)
	mutate("/maintenance/{id}", remove(payments, s.api.DeletePayment), http.MethodDelete)
	mutate("/expenditures", s.handleCreateExpenditure, http.MethodPost)
	mutate("/expenditures/{id}", s.handleUpdateExpenditure, http.MethodPut)
	mutate("/expenditures/{id}", s.handleDeleteExpenditure, http.MethodDelete)
	mutate("/settings/{action}", s.handleSettings, http.MethodPost)

	return r
}

// Shutdown stops background work and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
