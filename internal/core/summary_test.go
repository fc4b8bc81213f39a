package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizePayments(t *testing.T) {
	list := []Payment{
		PaymentView(PaymentRow{Amount: 5000, DueDate: "2024-03-05", Status: Ptr(PaymentPaid)}),
		PaymentView(PaymentRow{Amount: 5000, DueDate: "2024-03-05", Status: Ptr(PaymentPending)}),
		PaymentView(PaymentRow{Amount: 5000, DueDate: "2024-03-05", Status: Ptr(PaymentOverdue)}),
	}
	s := SummarizePayments(list)
	assert.Equal(t, 15000.0, s.Total)
	assert.Equal(t, 5000.0, s.Collected)
	assert.Equal(t, 10000.0, s.Pending)
	assert.Equal(t, 5000.0, s.Overdue)
	assert.Equal(t, 33, s.CollectionRate)
}

func TestSummarizePaymentsEmpty(t *testing.T) {
	s := SummarizePayments(nil)
	assert.Equal(t, PaymentSummary{}, s)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(10, 0))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 100, Percent(5, 5))
	assert.Equal(t, 1, Percent(0.5, 100))
}

func TestSummarizeHouses(t *testing.T) {
	s := SummarizeHouses([]House{{Status: "occupied"}, {Status: "vacant"}, {Status: "occupied"}, {}})
	assert.Equal(t, HouseSummary{Total: 4, Occupied: 2, Vacant: 1}, s)
}

func TestSummarizeExpenditures(t *testing.T) {
	s := SummarizeExpenditures([]Expenditure{
		{Category: "repairs", Amount: 100},
		{Category: "salaries", Amount: 250.5},
		{Category: "repairs", Amount: 50},
	})
	assert.Equal(t, 400.5, s.TotalExpenditure)
	assert.Equal(t, map[string]float64{"repairs": 150, "salaries": 250.5}, s.CategoryBreakdown)
	assert.Zero(t, s.RemainingBalance)
}

func TestSummarizeVehicles(t *testing.T) {
	s := SummarizeVehicles([]Vehicle{{Type: VehicleTwoWheeler}, {Type: VehicleFourWheeler}, {Type: VehicleTwoWheeler}})
	assert.Equal(t, VehicleSummary{Total: 3, TwoWheeler: 2, FourWheeler: 1}, s)
}
