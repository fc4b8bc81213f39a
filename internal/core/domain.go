package core

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	HouseOccupied HouseStatus = "occupied"
	HouseVacant   HouseStatus = "vacant"

	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"

	VehicleCar     VehicleCategory = "car"
	VehicleBike    VehicleCategory = "bike"
	VehicleScooter VehicleCategory = "scooter"
	VehicleOther   VehicleCategory = "other"

	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleSecurity Role = "security"
)

// Table names as declared in the backend schema.
const (
	TableHouses       = "houses"
	TableMembers      = "members"
	TableVehicles     = "vehicles"
	TablePayments     = "maintenance_payments"
	TableExpenditures = "expenditures"
	TableProfiles     = "profiles"
	TableUserRoles    = "user_roles"
	TableActivityLogs = "activity_logs"
)

type (
	HouseStatus     string
	PaymentStatus   string
	VehicleCategory string
	Role            string

	// HouseRef is the embedded house_number projection returned with
	// dependent rows when selecting "houses(house_number)".
	HouseRef struct {
		HouseNumber string `json:"house_number"`
	}

	HouseRow struct {
		ID          string   `json:"id"`
		HouseNumber string   `json:"house_number"`
		Block       *string  `json:"block"`
		AreaSqft    *Numeric `json:"area_sqft"`
		Status      *string  `json:"status"`
		Address     *string  `json:"address"`
		OwnerID     *string  `json:"owner_id"`
		CreatedAt   *string  `json:"created_at"`
		UpdatedAt   *string  `json:"updated_at"`
	}

	MemberRow struct {
		ID           string    `json:"id"`
		HouseID      string    `json:"house_id"`
		Name         string    `json:"name"`
		Relationship *string   `json:"relationship"`
		Phone        *string   `json:"phone"`
		Email        *string   `json:"email"`
		IsPrimary    *bool     `json:"is_primary"`
		ProfileID    *string   `json:"profile_id"`
		CreatedAt    *string   `json:"created_at"`
		UpdatedAt    *string   `json:"updated_at"`
		Houses       *HouseRef `json:"houses,omitempty"`
	}

	VehicleRow struct {
		ID            string          `json:"id"`
		HouseID       string          `json:"house_id"`
		VehicleNumber string          `json:"vehicle_number"`
		VehicleType   VehicleCategory `json:"vehicle_type"`
		Model         *string         `json:"model"`
		Color         *string         `json:"color"`
		OwnerName     string          `json:"owner_name"`
		CreatedAt     *string         `json:"created_at"`
		UpdatedAt     *string         `json:"updated_at"`
		Houses        *HouseRef       `json:"houses,omitempty"`
	}

	PaymentRow struct {
		ID            string         `json:"id"`
		HouseID       string         `json:"house_id"`
		Amount        Numeric        `json:"amount"`
		DueDate       string         `json:"due_date"`
		PaidDate      *string        `json:"paid_date"`
		Status        *PaymentStatus `json:"status"`
		PaymentMethod *string        `json:"payment_method"`
		Notes         *string        `json:"notes"`
		TransactionID *string        `json:"transaction_id"`
		CreatedAt     *string        `json:"created_at"`
		UpdatedAt     *string        `json:"updated_at"`
		Houses        *HouseRef      `json:"houses,omitempty"`
	}

	ExpenditureRow struct {
		ID          string  `json:"id"`
		Amount      Numeric `json:"amount"`
		Category    string  `json:"category"`
		Date        string  `json:"date"`
		Description string  `json:"description"`
		Vendor      *string `json:"vendor"`
		ApprovedBy  *string `json:"approved_by"`
		CreatedBy   string  `json:"created_by"`
		ReceiptURL  *string `json:"receipt_url"`
		CreatedAt   *string `json:"created_at"`
		UpdatedAt   *string `json:"updated_at"`
	}

	ProfileRow struct {
		ID           string  `json:"id"`
		FullName     string  `json:"full_name"`
		Email        *string `json:"email"`
		Phone        *string `json:"phone"`
		AvatarURL    *string `json:"avatar_url"`
		PasswordHash *string `json:"password_hash,omitempty"`
		CreatedAt    *string `json:"created_at"`
		UpdatedAt    *string `json:"updated_at"`
	}

	UserRoleRow struct {
		ID        string  `json:"id"`
		UserID    string  `json:"user_id"`
		Role      Role    `json:"role"`
		CreatedAt *string `json:"created_at"`
	}

	ActivityLogRow struct {
		ID         string          `json:"id"`
		UserID     *string         `json:"user_id"`
		Action     string          `json:"action"`
		EntityType *string         `json:"entity_type"`
		EntityID   *string         `json:"entity_id"`
		Details    json.RawMessage `json:"details"`
		CreatedAt  *string         `json:"created_at"`
	}

	// Notice is an informational answer for operations the deployment does
	// not support. It is not an error.
	Notice struct {
		Message string `json:"message"`
	}
)

var (
	ErrHouseNotFound  = errors.New("House not found")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidFloor   = errors.New("invalid floor")
	ErrEmptyHouseNo   = errors.New("empty house number")
	ErrEmptyName      = errors.New("empty name")
	ErrEmptyVehicleNo = errors.New("empty vehicle number")
	ErrEmptyOwnerName = errors.New("empty owner name")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidRole    = errors.New("invalid role")
	ErrEmptyHouseRef  = errors.New("empty house reference")
)

func (s HouseStatus) Valid() bool {
	return s == HouseOccupied || s == HouseVacant
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

func (c VehicleCategory) Valid() bool {
	switch c {
	case VehicleCar, VehicleBike, VehicleScooter, VehicleOther:
		return true
	}
	return false
}

// ParseRole validates a role string against the app_role enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleMember, RoleSecurity:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Number returns the embedded house number or "" when the relation was not
// selected or did not resolve.
func (h *HouseRef) Number() string {
	if h == nil {
		return ""
	}
	return h.HouseNumber
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
