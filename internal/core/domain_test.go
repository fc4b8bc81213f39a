package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerations(t *testing.T) {
	assert.True(t, HouseOccupied.Valid())
	assert.True(t, HouseVacant.Valid())
	assert.False(t, HouseStatus("demolished").Valid())

	for _, s := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentOverdue} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, PaymentStatus("refunded").Valid())

	for _, c := range []VehicleCategory{VehicleCar, VehicleBike, VehicleScooter, VehicleOther} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, VehicleCategory("truck").Valid())
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{" Member ", RoleMember, true},
		{"SECURITY", RoleSecurity, true},
		{"owner", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidRole, tc.in)
		}
	}
}

func TestMemberRowDecodesEmbeddedHouse(t *testing.T) {
	raw := `{"id":"m1","house_id":"h1","name":"Asha","relationship":"Owner",
		"houses":{"house_number":"A-101"}}`
	var r MemberRow
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, "A-101", r.Houses.Number())

	var bare MemberRow
	require.NoError(t, json.Unmarshal([]byte(`{"id":"m2","houses":null}`), &bare))
	assert.Equal(t, "", bare.Houses.Number())
}

func TestHouseNotFoundMessage(t *testing.T) {
	assert.Equal(t, "House not found", ErrHouseNotFound.Error())
}
