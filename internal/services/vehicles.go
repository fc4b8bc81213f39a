package services

import (
	"context"
	"strings"

	"society/internal/activity"
	"society/internal/backend"
	"society/internal/core"
)

type (
	VehicleInput struct {
		House      string  `json:"house"`
		Number     string  `json:"number"`
		Type       string  `json:"type"`
		BrandModel *string `json:"brandModel"`
		Color      *string `json:"color"`
		OwnerName  string  `json:"ownerName"`
	}

	// VehicleUpdate moves a vehicle to House and patches the non-nil
	// fields. House is always resolved.
	VehicleUpdate struct {
		House      string  `json:"house"`
		Number     *string `json:"number"`
		Type       *string `json:"type"`
		BrandModel *string `json:"brandModel"`
		Color      *string `json:"color"`
		OwnerName  *string `json:"ownerName"`
	}
)

func (s *Service) FetchVehicles(ctx context.Context) ([]core.Vehicle, error) {
	var rows []core.VehicleRow
	err := s.table(core.TableVehicles).
		Select("*, houses(house_number)").
		Order("vehicle_number", true).
		Rows(ctx, &rows)
	if err != nil {
		return nil, err
	}
	list := make([]core.Vehicle, len(rows))
	for i, r := range rows {
		list[i] = core.VehicleView(r)
	}
	return list, nil
}

// CreateVehicle stores "Two Wheeler" as a bike and every other type as a
// car.
func (s *Service) CreateVehicle(ctx context.Context, in VehicleInput) (core.VehicleRow, error) {
	if strings.TrimSpace(in.Number) == "" {
		return core.VehicleRow{}, core.ErrEmptyVehicleNo
	}
	if strings.TrimSpace(in.OwnerName) == "" {
		return core.VehicleRow{}, core.ErrEmptyOwnerName
	}
	houseID, err := s.resolver.Resolve(ctx, in.House)
	if err != nil {
		return core.VehicleRow{}, err
	}

	rec := backend.Record{
		"house_id":       houseID,
		"vehicle_number": in.Number,
		"vehicle_type":   string(core.VehicleCategoryFor(in.Type)),
		"owner_name":     in.OwnerName,
	}
	if in.BrandModel != nil {
		rec["model"] = *in.BrandModel
	}
	if in.Color != nil {
		rec["color"] = *in.Color
	}

	var row core.VehicleRow
	if err := s.table(core.TableVehicles).Single().Insert(ctx, []backend.Record{rec}, &row); err != nil {
		return core.VehicleRow{}, err
	}
	s.written(ctx, activity.ActionCreate, core.TableVehicles, row.ID, map[string]string{"house_number": in.House, "vehicle_number": row.VehicleNumber})
	return row, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, id string, in VehicleUpdate) (core.VehicleRow, error) {
	if in.Number != nil && strings.TrimSpace(*in.Number) == "" {
		return core.VehicleRow{}, core.ErrEmptyVehicleNo
	}
	if in.OwnerName != nil && strings.TrimSpace(*in.OwnerName) == "" {
		return core.VehicleRow{}, core.ErrEmptyOwnerName
	}
	houseID, err := s.resolver.Resolve(ctx, in.House)
	if err != nil {
		return core.VehicleRow{}, err
	}

	patch := backend.Record{"house_id": houseID}
	if in.Number != nil {
		patch["vehicle_number"] = *in.Number
	}
	if in.Type != nil {
		patch["vehicle_type"] = string(core.VehicleCategoryFor(*in.Type))
	}
	if in.BrandModel != nil {
		patch["model"] = *in.BrandModel
	}
	if in.Color != nil {
		patch["color"] = *in.Color
	}
	if in.OwnerName != nil {
		patch["owner_name"] = *in.OwnerName
	}

	var row core.VehicleRow
	if err := s.table(core.TableVehicles).Eq("id", id).Single().Update(ctx, patch, &row); err != nil {
		return core.VehicleRow{}, err
	}
	s.written(ctx, activity.ActionUpdate, core.TableVehicles, row.ID, patch)
	return row, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.table(core.TableVehicles).Eq("id", id).Delete(ctx); err != nil {
		return err
	}
	s.written(ctx, activity.ActionDelete, core.TableVehicles, id, nil)
	return nil
}
