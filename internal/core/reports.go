package core

import "sort"

type (
	ReportType struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Formats     []string `json:"formats"`
	}

	// OutstandingDue totals the unpaid payments of one house.
	OutstandingDue struct {
		House    string  `json:"house"`
		Pending  float64 `json:"pending"`
		Overdue  float64 `json:"overdue"`
		Payments int     `json:"payments"`
	}

	Reports struct {
		Types       []ReportType     `json:"types"`
		Outstanding []OutstandingDue `json:"outstanding"`
		Collection  PaymentSummary   `json:"collection"`
		Occupancy   HouseSummary     `json:"occupancy"`
	}
)

// ReportTypes is the catalogue of reports offered to administrators.
var ReportTypes = []ReportType{
	{"Monthly Collection Report", "Detailed maintenance collection summary with payment status", "Financial", []string{"PDF", "Excel"}},
	{"House Occupancy Report", "Current occupancy status and vacant properties overview", "Property", []string{"PDF", "Excel"}},
	{"Member Directory Report", "Complete member list with contact details and house assignments", "Membership", []string{"PDF", "Excel", "CSV"}},
	{"Vehicle Registration Report", "All registered vehicles with owner information", "Vehicle Management", []string{"PDF", "Excel"}},
	{"Financial Summary Report", "Comprehensive financial overview with charts and trends", "Financial", []string{"PDF"}},
	{"Outstanding Dues Report", "Pending and overdue maintenance payments summary", "Financial", []string{"PDF", "Excel"}},
}

// OutstandingDues groups unpaid payments by house, largest balance first.
// Payments without a status count as pending.
func OutstandingDues(list []Payment) []OutstandingDue {
	byHouse := map[string]*OutstandingDue{}
	for _, p := range list {
		if p.Status != nil && *p.Status == PaymentPaid {
			continue
		}
		d, ok := byHouse[p.House]
		if !ok {
			d = &OutstandingDue{House: p.House}
			byHouse[p.House] = d
		}
		d.Payments++
		if p.Status != nil && *p.Status == PaymentOverdue {
			d.Overdue += p.Amount
		} else {
			d.Pending += p.Amount
		}
	}

	out := make([]OutstandingDue, 0, len(byHouse))
	for _, d := range byHouse {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Pending+out[i].Overdue, out[j].Pending+out[j].Overdue
		if ti != tj {
			return ti > tj
		}
		return out[i].House < out[j].House
	})
	return out
}
