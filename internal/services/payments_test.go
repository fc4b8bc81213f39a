package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/backend"
	"society/internal/core"
)

func TestCreatePayment(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	h := mustHouse(t, s, "A-101", "occupied")

	row, err := s.CreatePayment(ctx, PaymentInput{
		House:   "A-101",
		Amount:  5000,
		DueDate: "2024-03-05",
		Status:  core.Ptr("pending"),
		Method:  core.Ptr("UPI"),
		Remarks: core.Ptr("march"),
	})
	require.NoError(t, err)
	assert.Equal(t, h.ID, row.HouseID)
	assert.Equal(t, 5000.0, row.Amount.Float())
	assert.Equal(t, "2024-03-05", row.DueDate)
	assert.Equal(t, "UPI", *row.PaymentMethod)
	assert.Equal(t, "march", *row.Notes)
	assert.Nil(t, row.PaidDate)
}

func TestCreatePaymentValidation(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")

	tests := []struct {
		name string
		in   PaymentInput
		want error
	}{
		{"zero amount", PaymentInput{House: "A-101", DueDate: "2024-03-05"}, core.ErrInvalidAmount},
		{"bad due date", PaymentInput{House: "A-101", Amount: 10, DueDate: "March"}, core.ErrInvalidDate},
		{"bad paid date", PaymentInput{House: "A-101", Amount: 10, DueDate: "2024-03-05", PaidDate: core.Ptr("soon")}, core.ErrInvalidDate},
		{"bad status", PaymentInput{House: "A-101", Amount: 10, DueDate: "2024-03-05", Status: core.Ptr("waived")}, core.ErrInvalidStatus},
		{"unknown house", PaymentInput{House: "Z-1", Amount: 10, DueDate: "2024-03-05"}, core.ErrHouseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreatePayment(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, store.Len(core.TablePayments))
}

func TestUpdatePaymentResolvesHouseOnlyWhenGiven(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	b := mustHouse(t, s, "B-201", "occupied")
	p, err := s.CreatePayment(ctx, PaymentInput{House: "A-101", Amount: 5000, DueDate: "2024-03-05"})
	require.NoError(t, err)

	row, err := s.UpdatePayment(ctx, p.ID, PaymentUpdate{Status: core.Ptr("paid"), PaidDate: core.Ptr("2024-03-04")})
	require.NoError(t, err)
	assert.Equal(t, p.HouseID, row.HouseID)
	assert.Equal(t, core.PaymentPaid, *row.Status)
	assert.Equal(t, "2024-03-04", *row.PaidDate)

	row, err = s.UpdatePayment(ctx, p.ID, PaymentUpdate{House: core.Ptr("B-201")})
	require.NoError(t, err)
	assert.Equal(t, b.ID, row.HouseID)

	_, err = s.UpdatePayment(ctx, p.ID, PaymentUpdate{House: core.Ptr("Z-1")})
	assert.ErrorIs(t, err, core.ErrHouseNotFound)

	row, err = s.UpdatePayment(ctx, p.ID, PaymentUpdate{PaidDate: core.Ptr("")})
	require.NoError(t, err)
	assert.Nil(t, row.PaidDate)
}

func TestFetchPaymentsSummary(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")

	for _, in := range []PaymentInput{
		{House: "A-101", Amount: 5000, DueDate: "2024-01-05", Status: core.Ptr("paid")},
		{House: "A-101", Amount: 5000, DueDate: "2024-03-05", Status: core.Ptr("pending")},
		{House: "A-101", Amount: 2500, DueDate: "2024-02-05", Status: core.Ptr("overdue")},
	} {
		_, err := s.CreatePayment(ctx, in)
		require.NoError(t, err)
	}

	got, err := s.FetchPayments(ctx)
	require.NoError(t, err)
	require.Len(t, got.List, 3)

	assert.Equal(t, []string{"March 2024", "February 2024", "January 2024"},
		[]string{got.List[0].Month, got.List[1].Month, got.List[2].Month})
	assert.Equal(t, 0.0, got.List[0].AmountPaid)
	assert.Equal(t, 5000.0, got.List[2].AmountPaid)
	assert.Equal(t, "A-101", got.List[0].House)
	assert.Empty(t, got.List[0].Owner)

	assert.Equal(t, core.PaymentSummary{
		Total:          12500,
		Collected:      5000,
		Pending:        7500,
		Overdue:        2500,
		CollectionRate: 40,
	}, got.Summary)
}

func TestGenerateMonthlyPayments(t *testing.T) {
	now := time.Date(2024, 3, 31, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	s, store := newTestService(t, fixedClock(now))
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	mustHouse(t, s, "A-102", "vacant")
	mustHouse(t, s, "A-103", "occupied")

	n, err := s.GenerateMonthlyPayments(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var rows []core.PaymentRow
	require.NoError(t, backend.From(store, core.TablePayments).Rows(ctx, &rows))
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "2024-03-05", r.DueDate, "due date follows the UTC month")
		assert.Equal(t, core.PaymentPending, *r.Status)
		assert.Equal(t, 5000.0, r.Amount.Float())
	}

	n, err = s.GenerateMonthlyPayments(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, store.Len(core.TablePayments), "a second run in the same month duplicates")
}

func TestGenerateMonthlyPaymentsNoOccupiedHouses(t *testing.T) {
	pub := &capturePublisher{}
	s, store := newTestService(t, WithPublisher(pub))
	mustHouse(t, s, "A-101", "vacant")
	pub.events = nil

	n, err := s.GenerateMonthlyPayments(context.Background(), 5000)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.Len(core.TablePayments))
	assert.Empty(t, pub.events)
}

func TestGenerateMonthlyPaymentsErrors(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.GenerateMonthlyPayments(context.Background(), 0)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	boom := errors.New("read failed")
	_, err = New(failingClient{err: boom}).GenerateMonthlyPayments(context.Background(), 5000)
	assert.ErrorIs(t, err, boom)
}

func TestDeletePayment(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	p, err := s.CreatePayment(ctx, PaymentInput{House: "A-101", Amount: 5000, DueDate: "2024-03-05"})
	require.NoError(t, err)

	require.NoError(t, s.DeletePayment(ctx, p.ID))
	assert.Zero(t, store.Len(core.TablePayments))
}
