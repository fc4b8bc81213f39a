package services

import (
	"context"

	"society/internal/backend"
	"society/internal/core"
)

// HouseResolver turns a human-readable house number into a house id.
type HouseResolver interface {
	Resolve(ctx context.Context, houseNumber string) (string, error)
}

type backendResolver struct {
	client backend.Client
}

// NewHouseResolver resolves by exact house_number match. No rows yields
// core.ErrHouseNotFound; any other backend failure is returned as is.
func NewHouseResolver(client backend.Client) HouseResolver {
	return backendResolver{client: client}
}

func (r backendResolver) Resolve(ctx context.Context, houseNumber string) (string, error) {
	if houseNumber == "" {
		return "", core.ErrHouseNotFound
	}
	var row struct {
		ID string `json:"id"`
	}
	err := backend.From(r.client, core.TableHouses).
		Select("id").
		Eq("house_number", houseNumber).
		Single().
		One(ctx, &row)
	if backend.IsNoRows(err) {
		return "", core.ErrHouseNotFound
	}
	if err != nil {
		return "", err
	}
	return row.ID, nil
}
