package services

import (
	"context"

	"society/internal/activity"
	"society/internal/backend"
	"society/internal/core"
)

type (
	PaymentInput struct {
		House    string       `json:"house"`
		Amount   core.Numeric `json:"amount"`
		DueDate  string       `json:"dueDate"`
		PaidDate *string      `json:"paidDate"`
		Status   *string      `json:"status"`
		Method   *string      `json:"method"`
		Remarks  *string      `json:"remarks"`
	}

	// PaymentUpdate patches the non-nil fields. The house is re-resolved
	// only when House is set.
	PaymentUpdate struct {
		House    *string       `json:"house"`
		Amount   *core.Numeric `json:"amount"`
		DueDate  *string       `json:"dueDate"`
		PaidDate *string       `json:"paidDate"`
		Status   *string       `json:"status"`
		Method   *string       `json:"method"`
		Remarks  *string       `json:"remarks"`
	}
)

func (s *Service) FetchPayments(ctx context.Context) (core.PaymentList, error) {
	var rows []core.PaymentRow
	err := s.table(core.TablePayments).
		Select("*, houses(house_number)").
		Order("due_date", false).
		Rows(ctx, &rows)
	if err != nil {
		return core.PaymentList{}, err
	}
	list := make([]core.Payment, len(rows))
	for i, r := range rows {
		list[i] = core.PaymentView(r)
	}
	return core.PaymentList{List: list, Summary: core.SummarizePayments(list)}, nil
}

func (s *Service) CreatePayment(ctx context.Context, in PaymentInput) (core.PaymentRow, error) {
	patch, err := paymentPatch(PaymentUpdate{
		Amount:   &in.Amount,
		DueDate:  &in.DueDate,
		PaidDate: in.PaidDate,
		Status:   in.Status,
		Method:   in.Method,
		Remarks:  in.Remarks,
	})
	if err != nil {
		return core.PaymentRow{}, err
	}
	houseID, err := s.resolver.Resolve(ctx, in.House)
	if err != nil {
		return core.PaymentRow{}, err
	}
	patch["house_id"] = houseID

	var row core.PaymentRow
	if err := s.table(core.TablePayments).Single().Insert(ctx, []backend.Record{patch}, &row); err != nil {
		return core.PaymentRow{}, err
	}
	s.written(ctx, activity.ActionCreate, core.TablePayments, row.ID, map[string]any{
		"house_number": in.House,
		"amount":       row.Amount.Float(),
		"due_date":     row.DueDate,
	})
	return row, nil
}

func (s *Service) UpdatePayment(ctx context.Context, id string, in PaymentUpdate) (core.PaymentRow, error) {
	patch, err := paymentPatch(in)
	if err != nil {
		return core.PaymentRow{}, err
	}
	if in.House != nil {
		houseID, err := s.resolver.Resolve(ctx, *in.House)
		if err != nil {
			return core.PaymentRow{}, err
		}
		patch["house_id"] = houseID
	}

	var row core.PaymentRow
	if err := s.table(core.TablePayments).Eq("id", id).Single().Update(ctx, patch, &row); err != nil {
		return core.PaymentRow{}, err
	}
	s.written(ctx, activity.ActionUpdate, core.TablePayments, row.ID, patch)
	return row, nil
}

func (s *Service) DeletePayment(ctx context.Context, id string) error {
	if err := s.table(core.TablePayments).Eq("id", id).Delete(ctx); err != nil {
		return err
	}
	s.written(ctx, activity.ActionDelete, core.TablePayments, id, nil)
	return nil
}

// GenerateMonthlyPayments creates one pending payment of defaultAmount for
// every occupied house, due on the 5th of the current UTC month. Calling it
// twice in a month creates a second set of rows.
func (s *Service) GenerateMonthlyPayments(ctx context.Context, defaultAmount float64) (int, error) {
	if defaultAmount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	var houses []core.HouseRow
	if err := s.table(core.TableHouses).Select("id, house_number, status").Rows(ctx, &houses); err != nil {
		return 0, err
	}

	dueDate := core.DueDateFor(s.now())
	rows := make([]backend.Record, 0, len(houses))
	for _, h := range houses {
		if h.Status == nil || core.HouseStatus(*h.Status) != core.HouseOccupied {
			continue
		}
		rows = append(rows, backend.Record{
			"house_id": h.ID,
			"amount":   defaultAmount,
			"due_date": dueDate,
			"status":   string(core.PaymentPending),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.table(core.TablePayments).Insert(ctx, rows, nil); err != nil {
		return 0, err
	}
	s.written(ctx, activity.ActionGenerate, core.TablePayments, "", map[string]any{
		"count":    len(rows),
		"amount":   defaultAmount,
		"due_date": dueDate,
	})
	return len(rows), nil
}

func paymentPatch(in PaymentUpdate) (backend.Record, error) {
	rec := backend.Record{}
	if in.Amount != nil {
		if in.Amount.Float() <= 0 {
			return nil, core.ErrInvalidAmount
		}
		rec["amount"] = in.Amount.Float()
	}
	if in.DueDate != nil {
		if _, ok := core.ParseDate(*in.DueDate); !ok {
			return nil, core.ErrInvalidDate
		}
		rec["due_date"] = *in.DueDate
	}
	if in.PaidDate != nil {
		if *in.PaidDate == "" {
			rec["paid_date"] = nil
		} else {
			if _, ok := core.ParseDate(*in.PaidDate); !ok {
				return nil, core.ErrInvalidDate
			}
			rec["paid_date"] = *in.PaidDate
		}
	}
	if in.Status != nil {
		if !core.PaymentStatus(*in.Status).Valid() {
			return nil, core.ErrInvalidStatus
		}
		rec["status"] = *in.Status
	}
	if in.Method != nil {
		rec["payment_method"] = *in.Method
	}
	if in.Remarks != nil {
		rec["notes"] = *in.Remarks
	}
	return rec, nil
}
