package queries

import (
	"context"

	"society/internal/core"
	"society/internal/services"
)

// Each mutation invalidates its listing plus the derived overviews, and
// only when the write succeeded.

func write[T any](ctx context.Context, c *Client, keys []string, do func() (T, error)) (T, error) {
	v, err := do()
	if err != nil {
		return v, err
	}
	c.Invalidate(ctx, keys...)
	return v, nil
}

func remove(ctx context.Context, c *Client, keys []string, do func() error) error {
	if err := do(); err != nil {
		return err
	}
	c.Invalidate(ctx, keys...)
	return nil
}

var (
	houseKeys   = []string{KeyHouses, KeyDashboard, KeyReports}
	memberKeys  = []string{KeyMembers, KeyDashboard}
	vehicleKeys = []string{KeyVehicles, KeyDashboard}
	paymentKeys = []string{KeyPayments, KeyDashboard, KeyReports}
)

func (c *Client) CreateHouse(ctx context.Context, in services.HouseInput) (core.HouseRow, error) {
	return write(ctx, c, houseKeys, func() (core.HouseRow, error) { return c.svc.CreateHouse(ctx, in) })
}

func (c *Client) UpdateHouse(ctx context.Context, id string, in services.HouseUpdate) (core.HouseRow, error) {
	return write(ctx, c, houseKeys, func() (core.HouseRow, error) { return c.svc.UpdateHouse(ctx, id, in) })
}

func (c *Client) DeleteHouse(ctx context.Context, id string) error {
	return remove(ctx, c, houseKeys, func() error { return c.svc.DeleteHouse(ctx, id) })
}

func (c *Client) CreateMember(ctx context.Context, in services.MemberInput) (core.MemberRow, error) {
	return write(ctx, c, memberKeys, func() (core.MemberRow, error) { return c.svc.CreateMember(ctx, in) })
}

func (c *Client) UpdateMember(ctx context.Context, id string, in services.MemberUpdate) (core.MemberRow, error) {
	return write(ctx, c, memberKeys, func() (core.MemberRow, error) { return c.svc.UpdateMember(ctx, id, in) })
}

func (c *Client) DeleteMember(ctx context.Context, id string) error {
	return remove(ctx, c, memberKeys, func() error { return c.svc.DeleteMember(ctx, id) })
}

func (c *Client) CreateVehicle(ctx context.Context, in services.VehicleInput) (core.VehicleRow, error) {
	return write(ctx, c, vehicleKeys, func() (core.VehicleRow, error) { return c.svc.CreateVehicle(ctx, in) })
}

func (c *Client) UpdateVehicle(ctx context.Context, id string, in services.VehicleUpdate) (core.VehicleRow, error) {
	return write(ctx, c, vehicleKeys, func() (core.VehicleRow, error) { return c.svc.UpdateVehicle(ctx, id, in) })
}

func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return remove(ctx, c, vehicleKeys, func() error { return c.svc.DeleteVehicle(ctx, id) })
}

func (c *Client) CreatePayment(ctx context.Context, in services.PaymentInput) (core.PaymentRow, error) {
	return write(ctx, c, paymentKeys, func() (core.PaymentRow, error) { return c.svc.CreatePayment(ctx, in) })
}

func (c *Client) UpdatePayment(ctx context.Context, id string, in services.PaymentUpdate) (core.PaymentRow, error) {
	return write(ctx, c, paymentKeys, func() (core.PaymentRow, error) { return c.svc.UpdatePayment(ctx, id, in) })
}

func (c *Client) DeletePayment(ctx context.Context, id string) error {
	return remove(ctx, c, paymentKeys, func() error { return c.svc.DeletePayment(ctx, id) })
}

func (c *Client) GenerateMonthlyPayments(ctx context.Context, defaultAmount float64) (int, error) {
	return write(ctx, c, paymentKeys, func() (int, error) { return c.svc.GenerateMonthlyPayments(ctx, defaultAmount) })
}

// Expenditure writes are not offered. They touch neither backend nor cache.

func (c *Client) CreateExpenditure(context.Context, any) error {
	return ErrNotImplemented
}

func (c *Client) UpdateExpenditure(context.Context, string, any) error {
	return ErrNotImplemented
}

func (c *Client) DeleteExpenditure(context.Context, string) error {
	return ErrNotImplemented
}

func (c *Client) ExportData() core.Notice { return c.svc.ExportData() }
func (c *Client) ImportData() core.Notice { return c.svc.ImportData() }
func (c *Client) ResetData() core.Notice  { return c.svc.ResetData() }
