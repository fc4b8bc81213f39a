package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/core"
)

func TestCreateMember(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	h := mustHouse(t, s, "A-101", "occupied")

	tests := []struct {
		name             string
		in               MemberInput
		wantRelationship *string
		wantPrimary      bool
	}{
		{
			name:             "owner role becomes relationship",
			in:               MemberInput{House: "A-101", Name: "Asha", Role: "Owner"},
			wantRelationship: core.Ptr("Owner"),
			wantPrimary:      true,
		},
		{
			name:             "explicit relationship wins",
			in:               MemberInput{House: "A-101", Name: "Ravi", Role: "Family Member", Relationship: core.Ptr("Son")},
			wantRelationship: core.Ptr("Son"),
		},
		{
			name:             "empty relationship falls back to role",
			in:               MemberInput{House: "A-101", Name: "Tara", Role: "Tenant", Relationship: core.Ptr("")},
			wantRelationship: core.Ptr("Tenant"),
		},
		{
			name: "no role nor relationship",
			in:   MemberInput{House: "A-101", Name: "Anon"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := s.CreateMember(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, h.ID, row.HouseID)
			assert.Equal(t, tt.wantRelationship, row.Relationship)
			require.NotNil(t, row.IsPrimary)
			assert.Equal(t, tt.wantPrimary, *row.IsPrimary)
		})
	}
}

func TestCreateMemberUnknownHouse(t *testing.T) {
	s, store := newTestService(t)

	_, err := s.CreateMember(context.Background(), MemberInput{House: "Z-9", Name: "Asha"})
	assert.ErrorIs(t, err, core.ErrHouseNotFound)
	assert.Zero(t, store.Len(core.TableMembers))

	_, err = s.CreateMember(context.Background(), MemberInput{House: "Z-9", Name: " "})
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestFetchMembers(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	mustHouse(t, s, "B-201", "occupied")

	for _, in := range []MemberInput{
		{House: "B-201", Name: "Zara", Role: "Tenant", Phone: core.Ptr("555")},
		{House: "A-101", Name: "Asha", Role: "Owner", Email: core.Ptr("asha@example.com")},
		{House: "A-101", Name: "Mira", Relationship: core.Ptr("Daughter")},
	} {
		_, err := s.CreateMember(ctx, in)
		require.NoError(t, err)
	}

	got, err := s.FetchMembers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Asha", got[0].Name)
	assert.Equal(t, "A-101", got[0].House)
	assert.Equal(t, "Owner", got[0].Role)
	assert.Equal(t, "asha@example.com", *got[0].Email)
	assert.Empty(t, got[0].Phone)

	assert.Equal(t, "Family Member", got[1].Role)
	assert.Equal(t, "Daughter", *got[1].Relationship)

	assert.Equal(t, "Tenant", got[2].Role)
	assert.Equal(t, "B-201", got[2].House)
	assert.Equal(t, "555", got[2].Phone)
	for _, m := range got {
		assert.Equal(t, "active", m.Status)
	}
}

func TestUpdateMember(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	b := mustHouse(t, s, "B-201", "occupied")
	m, err := s.CreateMember(ctx, MemberInput{House: "A-101", Name: "Asha", Role: "Owner", Phone: core.Ptr("111")})
	require.NoError(t, err)

	row, err := s.UpdateMember(ctx, m.ID, MemberUpdate{House: "B-201", Phone: core.Ptr("222")})
	require.NoError(t, err)
	assert.Equal(t, b.ID, row.HouseID)
	assert.Equal(t, "222", *row.Phone)
	assert.Equal(t, "Asha", row.Name)
	assert.Equal(t, "Owner", *row.Relationship, "relationship is not part of an update")

	_, err = s.UpdateMember(ctx, m.ID, MemberUpdate{House: "nowhere"})
	assert.ErrorIs(t, err, core.ErrHouseNotFound)

	_, err = s.UpdateMember(ctx, m.ID, MemberUpdate{Name: core.Ptr("Asha")})
	assert.ErrorIs(t, err, core.ErrHouseNotFound, "house is always resolved")
}

func TestDeleteMember(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()
	mustHouse(t, s, "A-101", "occupied")
	m, err := s.CreateMember(ctx, MemberInput{House: "A-101", Name: "Asha"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMember(ctx, m.ID))
	assert.Zero(t, store.Len(core.TableMembers))
	require.NoError(t, s.DeleteMember(ctx, "unknown"))
}
