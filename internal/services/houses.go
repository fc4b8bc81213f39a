package services

import (
	"context"
	"strings"

	"society/internal/activity"
	"society/internal/backend"
	"society/internal/core"
)

type (
	HouseInput struct {
		HouseNo string  `json:"houseNo"`
		Block   *string `json:"block"`
		Floor   *string `json:"floor"`
		Status  *string `json:"status"`
		Notes   *string `json:"notes"`
	}

	// HouseUpdate patches a house. Nil fields are left untouched.
	HouseUpdate struct {
		HouseNo *string `json:"houseNo"`
		Block   *string `json:"block"`
		Floor   *string `json:"floor"`
		Status  *string `json:"status"`
		Notes   *string `json:"notes"`
	}
)

func (s *Service) FetchHouses(ctx context.Context) (core.HouseList, error) {
	var rows []core.HouseRow
	if err := s.table(core.TableHouses).Select("*").Order("house_number", true).Rows(ctx, &rows); err != nil {
		return core.HouseList{}, err
	}
	list := make([]core.House, len(rows))
	for i, r := range rows {
		list[i] = core.HouseView(r)
	}
	return core.HouseList{
		List:    list,
		Summary: core.SummarizeHouses(list),
		Pagination: core.Pagination{
			Total:    len(list),
			Page:     1,
			PageSize: core.DefaultPageSize,
		},
	}, nil
}

func (s *Service) CreateHouse(ctx context.Context, in HouseInput) (core.HouseRow, error) {
	if strings.TrimSpace(in.HouseNo) == "" {
		return core.HouseRow{}, core.ErrEmptyHouseNo
	}
	rec, err := housePatch(HouseUpdate{
		HouseNo: &in.HouseNo,
		Block:   in.Block,
		Floor:   in.Floor,
		Status:  in.Status,
		Notes:   in.Notes,
	})
	if err != nil {
		return core.HouseRow{}, err
	}

	var row core.HouseRow
	if err := s.table(core.TableHouses).Single().Insert(ctx, []backend.Record{rec}, &row); err != nil {
		return core.HouseRow{}, err
	}
	s.written(ctx, activity.ActionCreate, core.TableHouses, row.ID, map[string]string{"house_number": row.HouseNumber})
	return row, nil
}

func (s *Service) UpdateHouse(ctx context.Context, id string, in HouseUpdate) (core.HouseRow, error) {
	if in.HouseNo != nil && strings.TrimSpace(*in.HouseNo) == "" {
		return core.HouseRow{}, core.ErrEmptyHouseNo
	}
	patch, err := housePatch(in)
	if err != nil {
		return core.HouseRow{}, err
	}

	var row core.HouseRow
	if err := s.table(core.TableHouses).Eq("id", id).Single().Update(ctx, patch, &row); err != nil {
		return core.HouseRow{}, err
	}
	s.written(ctx, activity.ActionUpdate, core.TableHouses, row.ID, patch)
	return row, nil
}

// DeleteHouse removes the house by id. Deleting an unknown id succeeds;
// dependent rows are handled by the schema, not here.
func (s *Service) DeleteHouse(ctx context.Context, id string) error {
	if err := s.table(core.TableHouses).Eq("id", id).Delete(ctx); err != nil {
		return err
	}
	s.written(ctx, activity.ActionDelete, core.TableHouses, id, nil)
	return nil
}

// housePatch maps view fields onto columns: floor is stored in area_sqft
// and notes in address. An empty floor clears the column.
func housePatch(in HouseUpdate) (backend.Record, error) {
	rec := backend.Record{}
	if in.HouseNo != nil {
		rec["house_number"] = strings.TrimSpace(*in.HouseNo)
	}
	if in.Block != nil {
		rec["block"] = *in.Block
	}
	if in.Floor != nil {
		if strings.TrimSpace(*in.Floor) == "" {
			rec["area_sqft"] = nil
		} else {
			v, err := core.ParseAmount(*in.Floor)
			if err != nil {
				return nil, core.ErrInvalidFloor
			}
			rec["area_sqft"] = v
		}
	}
	if in.Status != nil {
		if !core.HouseStatus(*in.Status).Valid() {
			return nil, core.ErrInvalidStatus
		}
		rec["status"] = *in.Status
	}
	if in.Notes != nil {
		rec["address"] = *in.Notes
	}
	return rec, nil
}
