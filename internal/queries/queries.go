// Package queries serves listings through a shared cache with a staleness
// window and invalidates it after successful writes.
package queries

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"society/internal/cache"
	"society/internal/core"
	applog "society/internal/log"
	"society/internal/services"
)

// Read keys.
const (
	KeyHouses       = "houses"
	KeyMembers      = "members"
	KeyVehicles     = "vehicles"
	KeyPayments     = "payments"
	KeyExpenditures = "expenditures"
	KeyDashboard    = "dashboard"
	KeyReports      = "reports"
)

const DefaultStaleTime = 30 * time.Second

// ErrNotImplemented is returned by operations that are permanently
// unavailable.
var ErrNotImplemented = errors.New("Not implemented")

// Service is the mapping layer the client reads through and writes to.
type Service interface {
	FetchHouses(ctx context.Context) (core.HouseList, error)
	FetchMembers(ctx context.Context) ([]core.Member, error)
	FetchVehicles(ctx context.Context) ([]core.Vehicle, error)
	FetchPayments(ctx context.Context) (core.PaymentList, error)
	FetchExpenditures(ctx context.Context) (core.ExpenditureList, error)
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

	ExportData() core.Notice
	ImportData() core.Notice
	ResetData() core.Notice
}

var _ Service = (*services.Service)(nil)

// Client is built once per process from an explicitly constructed cache
// store and shared by every request.
type Client struct {
	svc       Service
	store     cache.Store
	staleTime time.Duration
	group     singleflight.Group
	logger    *applog.Logger
	metrics   Observer

	// generations counts invalidations per key. A fetch that started
	// before an invalidation must not write its result back.
	mu          sync.Mutex
	generations map[string]uint64
}

// Observer receives cache outcomes, e.g. for metrics.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)  {}
func (nopObserver) CacheMiss(string) {}

type Option func(*Client)

func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.metrics = o }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(svc Service, store cache.Store, opts ...Option) *Client {
	c := &Client{
		svc:         svc,
		store:       store,
		staleTime:   DefaultStaleTime,
		metrics:     nopObserver{},
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentQueries,
		})
	}
	return c
}

// read serves key from the store while fresh. Otherwise one caller per key
// fetches and the others wait for its result. Store failures degrade to a
// fetch; fetch failures are never cached. The shared fetch outlives any
// single caller: a caller whose context ends stops waiting, the others
// still get the result.
func read[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if b, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "Cache read failed", applog.FieldCacheKey, key, applog.FieldError, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			c.metrics.CacheHit(key)
			return v, nil
		}
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", applog.FieldCacheKey, key)
	}
	c.metrics.CacheMiss(key)

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.generation(key)
		fresh, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.generation(key) != gen {
			c.logger.DebugContext(fetchCtx, "Skipping cache write for invalidated key", applog.FieldCacheKey, key)
			return fresh, nil
		}
		if b, err := json.Marshal(fresh); err == nil {
			if err := c.store.Set(fetchCtx, key, b, c.staleTime); err != nil {
				c.logger.WarnContext(fetchCtx, "Cache write failed", applog.FieldCacheKey, key, applog.FieldError, err)
			}
		}
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Client) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// Invalidate drops keys so the next read fetches. Fetches already in
// flight for these keys still answer their callers but are not cached.
func (c *Client) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		c.generations[k]++
	}
	c.mu.Unlock()
	for _, k := range keys {
		c.group.Forget(k)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "Cache invalidation failed", "keys", keys, applog.FieldError, err)
		return
	}
	c.logger.DebugContext(ctx, "Cache invalidated", applog.FieldOperation, applog.OpInvalidate, "keys", keys)
}

func (c *Client) Houses(ctx context.Context) (core.HouseList, error) {
	return read(ctx, c, KeyHouses, c.svc.FetchHouses)
}

func (c *Client) Members(ctx context.Context) ([]core.Member, error) {
	return read(ctx, c, KeyMembers, c.svc.FetchMembers)
}

func (c *Client) Vehicles(ctx context.Context) ([]core.Vehicle, error) {
	return read(ctx, c, KeyVehicles, c.svc.FetchVehicles)
}

func (c *Client) Payments(ctx context.Context) (core.PaymentList, error) {
	return read(ctx, c, KeyPayments, c.svc.FetchPayments)
}

func (c *Client) Expenditures(ctx context.Context) (core.ExpenditureList, error) {
	return read(ctx, c, KeyExpenditures, c.svc.FetchExpenditures)
}

func (c *Client) Dashboard(ctx context.Context) (core.Dashboard, error) {
	return read(ctx, c, KeyDashboard, c.svc.Dashboard)
}

func (c *Client) Reports(ctx context.Context) (core.Reports, error) {
	return read(ctx, c, KeyReports, c.svc.Reports)
}
