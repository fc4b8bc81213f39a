package services

import (
	"context"
	"strings"

	"society/internal/activity"
	"society/internal/backend"
	"society/internal/core"
)

type (
	MemberInput struct {
		House        string  `json:"house"`
		Name         string  `json:"name"`
		Role         string  `json:"role"`
		Relationship *string `json:"relationship"`
		Phone        *string `json:"phone"`
		Email        *string `json:"email"`
	}

	// MemberUpdate moves a member to House and patches the non-nil
	// fields. House is always resolved.
	MemberUpdate struct {
		House string  `json:"house"`
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
		Email *string `json:"email"`
	}
)

func (s *Service) FetchMembers(ctx context.Context) ([]core.Member, error) {
	var rows []core.MemberRow
	err := s.table(core.TableMembers).
		Select("*, houses(house_number)").
		Order("name", true).
		Rows(ctx, &rows)
	if err != nil {
		return nil, err
	}
	list := make([]core.Member, len(rows))
	for i, r := range rows {
		list[i] = core.MemberView(r)
	}
	return list, nil
}

// CreateMember stores the relationship as given, falling back to the role,
// and marks owners as the primary member of the house.
func (s *Service) CreateMember(ctx context.Context, in MemberInput) (core.MemberRow, error) {
	if strings.TrimSpace(in.Name) == "" {
		return core.MemberRow{}, core.ErrEmptyName
	}
	houseID, err := s.resolver.Resolve(ctx, in.House)
	if err != nil {
		return core.MemberRow{}, err
	}

	rec := backend.Record{
		"house_id":   houseID,
		"name":       in.Name,
		"is_primary": in.Role == core.MemberOwner,
	}
	switch {
	case in.Relationship != nil && *in.Relationship != "":
		rec["relationship"] = *in.Relationship
	case in.Role != "":
		rec["relationship"] = in.Role
	}
	if in.Phone != nil {
		rec["phone"] = *in.Phone
	}
	if in.Email != nil {
		rec["email"] = *in.Email
	}

	var row core.MemberRow
	if err := s.table(core.TableMembers).Single().Insert(ctx, []backend.Record{rec}, &row); err != nil {
		return core.MemberRow{}, err
	}
	s.written(ctx, activity.ActionCreate, core.TableMembers, row.ID, map[string]string{"house_number": in.House, "name": row.Name})
	return row, nil
}

func (s *Service) UpdateMember(ctx context.Context, id string, in MemberUpdate) (core.MemberRow, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return core.MemberRow{}, core.ErrEmptyName
	}
	houseID, err := s.resolver.Resolve(ctx, in.House)
	if err != nil {
		return core.MemberRow{}, err
	}

	patch := backend.Record{"house_id": houseID}
	if in.Name != nil {
		patch["name"] = *in.Name
	}
	if in.Phone != nil {
		patch["phone"] = *in.Phone
	}
	if in.Email != nil {
		patch["email"] = *in.Email
	}

	var row core.MemberRow
	if err := s.table(core.TableMembers).Eq("id", id).Single().Update(ctx, patch, &row); err != nil {
		return core.MemberRow{}, err
	}
	s.written(ctx, activity.ActionUpdate, core.TableMembers, row.ID, patch)
	return row, nil
}

func (s *Service) DeleteMember(ctx context.Context, id string) error {
	if err := s.table(core.TableMembers).Eq("id", id).Delete(ctx); err != nil {
		return err
	}
	s.written(ctx, activity.ActionDelete, core.TableMembers, id, nil)
	return nil
}
