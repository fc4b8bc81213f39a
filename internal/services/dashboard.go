package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"society/internal/activity"
	"society/internal/core"
)

const recentActivityLimit = 5

// Dashboard reads every listing concurrently and folds them into one
// overview. The first failing read cancels the rest and is returned.
func (s *Service) Dashboard(ctx context.Context) (core.Dashboard, error) {
	var (
		houses       core.HouseList
		members      []core.Member
		vehicles     []core.Vehicle
		payments     core.PaymentList
		expenditures core.ExpenditureList
		recent       []core.ActivityLogRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		houses, err = s.FetchHouses(gctx)
		return err
	})
	g.Go(func() (err error) {
		members, err = s.FetchMembers(gctx)
		return err
	})
	g.Go(func() (err error) {
		vehicles, err = s.FetchVehicles(gctx)
		return err
	})
	g.Go(func() (err error) {
		payments, err = s.FetchPayments(gctx)
		return err
	})
	g.Go(func() (err error) {
		expenditures, err = s.FetchExpenditures(gctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = activity.NewRecorder(s.client).Recent(gctx, recentActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}

	if recent == nil {
		recent = []core.ActivityLogRow{}
	}
	spent := expenditures.Summary.TotalExpenditure
	return core.Dashboard{
		Houses:           houses.Summary,
		Members:          len(members),
		Vehicles:         core.SummarizeVehicles(vehicles),
		Payments:         payments.Summary,
		TotalExpenditure: spent,
		RemainingBalance: payments.Summary.Collected - spent,
		OccupancyRate:    core.Percent(float64(houses.Summary.Occupied), float64(houses.Summary.Total)),
		RecentActivity:   recent,
	}, nil
}

// Reports returns the report catalogue with the figures behind the
// collection, occupancy and outstanding-dues reports.
func (s *Service) Reports(ctx context.Context) (core.Reports, error) {
	var (
		houses   core.HouseList
		payments core.PaymentList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		houses, err = s.FetchHouses(gctx)
		return err
	})
	g.Go(func() (err error) {
		payments, err = s.FetchPayments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Reports{}, err
	}
	return core.Reports{
		Types:       core.ReportTypes,
		Outstanding: core.OutstandingDues(payments.List),
		Collection:  payments.Summary,
		Occupancy:   houses.Summary,
	}, nil
}
