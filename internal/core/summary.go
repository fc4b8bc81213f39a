package core

import "math"

type (
	HouseSummary struct {
		Total    int `json:"total"`
		Occupied int `json:"occupied"`
		Vacant   int `json:"vacant"`
	}

	HouseList struct {
		List       []House      `json:"list"`
		Summary    HouseSummary `json:"summary"`
		Pagination Pagination   `json:"pagination"`
	}

	PaymentSummary struct {
		Total          float64 `json:"total"`
		Collected      float64 `json:"collected"`
		Pending        float64 `json:"pending"`
		Overdue        float64 `json:"overdue"`
		CollectionRate int     `json:"collectionRate"`
	}

	PaymentList struct {
		List    []Payment      `json:"list"`
		Summary PaymentSummary `json:"summary"`
	}

	ExpenditureSummary struct {
		TotalExpenditure  float64            `json:"totalExpenditure"`
		TotalCollection   float64            `json:"totalCollection"`
		RemainingBalance  float64            `json:"remainingBalance"`
		CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
	}

	ExpenditureList struct {
		List    []Expenditure      `json:"list"`
		Summary ExpenditureSummary `json:"summary"`
	}

	VehicleSummary struct {
		Total       int `json:"total"`
		TwoWheeler  int `json:"twoWheeler"`
		FourWheeler int `json:"fourWheeler"`
	}

	Dashboard struct {
		Houses           HouseSummary     `json:"houses"`
		Members          int              `json:"members"`
		Vehicles         VehicleSummary   `json:"vehicles"`
		Payments         PaymentSummary   `json:"payments"`
		TotalExpenditure float64          `json:"totalExpenditure"`
		RemainingBalance float64          `json:"remainingBalance"`
		OccupancyRate    int              `json:"occupancyRate"`
		RecentActivity   []ActivityLogRow `json:"recentActivity"`
	}
)

// SummarizeHouses counts houses by status. Rows with an unset or unknown
// status count towards the total only.
func SummarizeHouses(list []House) HouseSummary {
	s := HouseSummary{Total: len(list)}
	for _, h := range list {
		switch HouseStatus(h.Status) {
		case HouseOccupied:
			s.Occupied++
		case HouseVacant:
			s.Vacant++
		}
	}
	return s
}

// SummarizePayments aggregates mapped payments. Pending is everything not
// collected, overdue included; Overdue reports the overdue share on its own.
func SummarizePayments(list []Payment) PaymentSummary {
	var s PaymentSummary
	for _, p := range list {
		s.Total += p.Amount
		if p.Status == nil {
			continue
		}
		switch *p.Status {
		case PaymentPaid:
			s.Collected += p.AmountPaid
		case PaymentOverdue:
			s.Overdue += p.Amount
		}
	}
	s.Pending = s.Total - s.Collected
	s.CollectionRate = Percent(s.Collected, s.Total)
	return s
}

func SummarizeExpenditures(list []Expenditure) ExpenditureSummary {
	s := ExpenditureSummary{CategoryBreakdown: make(map[string]float64)}
	for _, e := range list {
		s.TotalExpenditure += e.Amount
		s.CategoryBreakdown[e.Category] += e.Amount
	}
	return s
}

func SummarizeVehicles(list []Vehicle) VehicleSummary {
	s := VehicleSummary{Total: len(list)}
	for _, v := range list {
		if v.Type == VehicleTwoWheeler {
			s.TwoWheeler++
		} else {
			s.FourWheeler++
		}
	}
	return s
}

// Percent returns part/whole as a whole percentage rounded half away from
// zero, or 0 when whole is not positive.
func Percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}
