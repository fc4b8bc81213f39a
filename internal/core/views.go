package core

import (
	"time"
	"unicode/utf8"
)

const (
	VehicleTwoWheeler  = "Two Wheeler"
	VehicleFourWheeler = "Four Wheeler"

	MemberOwner  = "Owner"
	MemberTenant = "Tenant"
	MemberFamily = "Family Member"

	StatusActive = "active"

	DefaultPaymentMode = "Cash"
	DefaultExpenseName = "Expense"

	// DefaultPageSize is the page size reported with house listings. The
	// listing is not actually paginated.
	DefaultPageSize = 100

	titleMaxRunes = 50
	monthLayout   = "January 2006"
	dateLayout    = "2006-01-02"
)

// View models exchanged with clients. Field names follow the JSON shapes the
// web client renders.
type (
	House struct {
		ID            string  `json:"_id"`
		HouseNo       string  `json:"houseNo"`
		Block         string  `json:"block"`
		Floor         string  `json:"floor"`
		Status        string  `json:"status"`
		Notes         string  `json:"notes"`
		OwnerName     string  `json:"ownerName"`
		MembersCount  int     `json:"membersCount"`
		VehiclesCount int     `json:"vehiclesCount"`
		CreatedAt     *string `json:"createdAt"`
		UpdatedAt     *string `json:"updatedAt"`
	}

	Member struct {
		ID           string  `json:"_id"`
		Name         string  `json:"name"`
		House        string  `json:"house"`
		Role         string  `json:"role"`
		Relationship *string `json:"relationship"`
		Phone        string  `json:"phone"`
		Email        *string `json:"email"`
		Status       string  `json:"status"`
		CreatedAt    *string `json:"createdAt"`
		UpdatedAt    *string `json:"updatedAt"`
	}

	Vehicle struct {
		ID               string  `json:"_id"`
		Number           string  `json:"number"`
		Type             string  `json:"type"`
		BrandModel       *string `json:"brandModel"`
		Color            *string `json:"color"`
		OwnerName        string  `json:"ownerName"`
		House            string  `json:"house"`
		RegistrationDate *string `json:"registrationDate"`
		Status           string  `json:"status"`
		CreatedAt        *string `json:"createdAt"`
		UpdatedAt        *string `json:"updatedAt"`
	}

	Payment struct {
		ID         string         `json:"id"`
		House      string         `json:"house"`
		Owner      string         `json:"owner"`
		Amount     float64        `json:"amount"`
		AmountPaid float64        `json:"amountPaid"`
		Month      string         `json:"month"`
		DueDate    string         `json:"dueDate"`
		PaidDate   *string        `json:"paidDate"`
		Status     *PaymentStatus `json:"status"`
		Method     *string        `json:"method"`
		Remarks    *string        `json:"remarks"`
		CreatedAt  *string        `json:"createdAt"`
		UpdatedAt  *string        `json:"updatedAt"`
	}

	Expenditure struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Category    string  `json:"category"`
		Amount      float64 `json:"amount"`
		PaymentMode string  `json:"paymentMode"`
		Date        string  `json:"date"`
		Description string  `json:"description"`
		CreatedAt   *string `json:"createdAt"`
		UpdatedAt   *string `json:"updatedAt"`
	}

	Pagination struct {
		Total    int `json:"total"`
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
	}
)

// HouseView maps a house row. Owner name and the member/vehicle counts are
// not derived from related tables and are always empty.
func HouseView(r HouseRow) House {
	h := House{
		ID:        r.ID,
		HouseNo:   r.HouseNumber,
		Block:     deref(r.Block),
		Status:    deref(r.Status),
		Notes:     deref(r.Address),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.AreaSqft != nil && *r.AreaSqft != 0 {
		h.Floor = FormatAmount(r.AreaSqft.Float())
	}
	return h
}

func MemberView(r MemberRow) Member {
	return Member{
		ID:           r.ID,
		Name:         r.Name,
		House:        r.Houses.Number(),
		Role:         MemberRole(r.Relationship),
		Relationship: r.Relationship,
		Phone:        deref(r.Phone),
		Email:        r.Email,
		Status:       StatusActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func VehicleView(r VehicleRow) Vehicle {
	return Vehicle{
		ID:               r.ID,
		Number:           r.VehicleNumber,
		Type:             VehicleTypeLabel(r.VehicleType),
		BrandModel:       r.Model,
		Color:            r.Color,
		OwnerName:        r.OwnerName,
		House:            r.Houses.Number(),
		RegistrationDate: r.CreatedAt,
		Status:           StatusActive,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func PaymentView(r PaymentRow) Payment {
	p := Payment{
		ID:        r.ID,
		House:     r.Houses.Number(),
		Amount:    r.Amount.Float(),
		Month:     MonthLabel(r.DueDate),
		DueDate:   r.DueDate,
		PaidDate:  r.PaidDate,
		Status:    r.Status,
		Method:    r.PaymentMethod,
		Remarks:   r.Notes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Status != nil && *r.Status == PaymentPaid {
		p.AmountPaid = p.Amount
	}
	return p
}

func ExpenditureView(r ExpenditureRow) Expenditure {
	return Expenditure{
		ID:          r.ID,
		Title:       ExpenditureTitle(r.Description),
		Category:    r.Category,
		Amount:      r.Amount.Float(),
		PaymentMode: DefaultPaymentMode,
		Date:        r.Date,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// MemberRole derives the display role from the free-text relationship.
func MemberRole(relationship *string) string {
	switch deref(relationship) {
	case MemberOwner:
		return MemberOwner
	case MemberTenant:
		return MemberTenant
	default:
		return MemberFamily
	}
}

// VehicleTypeLabel collapses the stored category to the two display types.
func VehicleTypeLabel(c VehicleCategory) string {
	if c == VehicleBike || c == VehicleScooter {
		return VehicleTwoWheeler
	}
	return VehicleFourWheeler
}

// VehicleCategoryFor maps a display type back to a stored category. Anything
// other than "Two Wheeler" becomes a car, so scooter and other cannot be
// written from the display side.
func VehicleCategoryFor(label string) VehicleCategory {
	if label == VehicleTwoWheeler {
		return VehicleBike
	}
	return VehicleCar
}

// ExpenditureTitle is the first 50 characters of the description, or
// "Expense" when it is empty.
func ExpenditureTitle(description string) string {
	if description == "" {
		return DefaultExpenseName
	}
	if utf8.RuneCountInString(description) <= titleMaxRunes {
		return description
	}
	r := []rune(description)
	return string(r[:titleMaxRunes])
}

// MonthLabel renders a due date as "March 2024". Timestamps are accepted as
// well as plain dates; unparseable input yields "".
func MonthLabel(date string) string {
	t, ok := ParseDate(date)
	if !ok {
		return ""
	}
	return t.Format(monthLayout)
}

// ParseDate parses a YYYY-MM-DD date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if len(s) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DueDateFor returns the maintenance due date (the 5th) of the UTC calendar
// month containing now.
func DueDateFor(now time.Time) string {
	return now.UTC().Format("2006-01") + "-05"
}
