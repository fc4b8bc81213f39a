package services

import (
	"context"

	"society/internal/core"
)

// FetchExpenditures lists expenditures newest first. The collection and
// balance figures of the summary are left at zero; Dashboard computes them.
func (s *Service) FetchExpenditures(ctx context.Context) (core.ExpenditureList, error) {
	var rows []core.ExpenditureRow
	if err := s.table(core.TableExpenditures).Select("*").Order("date", false).Rows(ctx, &rows); err != nil {
		return core.ExpenditureList{}, err
	}
	list := make([]core.Expenditure, len(rows))
	for i, r := range rows {
		list[i] = core.ExpenditureView(r)
	}
	return core.ExpenditureList{List: list, Summary: core.SummarizeExpenditures(list)}, nil
}
