package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// resource names a listing for triggers and notifications.
type resource struct {
	key   string
	label string
}

var (
	houses       = resource{"houses", "House"}
	members      = resource{"members", "Member"}
	vehicles     = resource{"vehicles", "Vehicle"}
	payments     = resource{"payments", "Payment"}
	expenditures = resource{"expenditures", "Expenditure"}
)

func list[Out any](fetch func(context.Context) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fetch(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewResponse().JSON(out).Write(w)
	}
}

func create[In, Out any](res resource, fn func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(w, r, &in); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		out, err := fn(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewResponse().
			Status(http.StatusCreated).
			TriggerChanged(res.key).
			TriggerSuccessNotification(res.label + " added successfully").
			JSON(out).
			Write(w)
	}
}

func update[In, Out any](res resource, fn func(context.Context, string, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(w, r, &in); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		out, err := fn(r.Context(), mux.Vars(r)["id"], in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewResponse().
			TriggerChanged(res.key).
			TriggerSuccessNotification(res.label + " updated successfully").
			JSON(out).
			Write(w)
	}
}

func remove(res resource, fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, r, err)
			return
		}
		NewResponse().
			Status(http.StatusNoContent).
			TriggerChanged(res.key).
			TriggerSuccessNotification(res.label + " deleted successfully").
			Write(w)
	}
}

type generateRequest struct {
	Amount *float64 `json:"amount"`
}

type generateResponse struct {
	Generated int `json:"generated"`
}

// handleGeneratePayments creates this month's pending payments. The
// amount defaults to the configured maintenance amount.
func (s *Server) handleGeneratePayments(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount := s.defaultAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	n, err := s.api.GenerateMonthlyPayments(r.Context(), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerChanged(payments.key).
		TriggerSuccessNotification("Monthly payments generated").
		JSON(generateResponse{Generated: n}).
		Write(w)
}

func (s *Server) handleCreateExpenditure(w http.ResponseWriter, r *http.Request) {
	// Expenditures are not implemented yet; the payload is not read.
	if err := s.api.CreateExpenditure(r.Context(), nil); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).TriggerChanged(expenditures.key).Write(w)
}

func (s *Server) handleUpdateExpenditure(w http.ResponseWriter, r *http.Request) {
	if err := s.api.UpdateExpenditure(r.Context(), mux.Vars(r)["id"], nil); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().TriggerChanged(expenditures.key).Write(w)
}

func (s *Server) handleDeleteExpenditure(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteExpenditure(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).TriggerChanged(expenditures.key).Write(w)
}

// handleSettings answers export, import and reset with their notice.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var notice = s.api.ExportData
	switch strings.ToLower(mux.Vars(r)["action"]) {
	case "export":
	case "import":
		notice = s.api.ImportData
	case "reset":
		notice = s.api.ResetData
	default:
		NotFoundError("Unknown settings action").Write(w)
		return
	}
	n := notice()
	NewResponse().TriggerNotification(NotificationInfo, n.Message, 5000).JSON(n).Write(w)
}
