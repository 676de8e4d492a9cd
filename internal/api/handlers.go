package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/appointment"
	redisclient "github.com/rafaelminatto1/fisioflow-scheduling/internal/redis"
	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

func validateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := decodeDraft(w, r)
		if !ok {
			return
		}

		res, _, err := svc.ValidateDraft(r.Context(), draft)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVerdictResponse(res))
	}
}

func quickValidateHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := decodeDraft(w, r)
		if !ok {
			return
		}

		valid, msg := svc.QuickValidate(draft)
		writeJSON(w, http.StatusOK, QuickVerdictResponse{Valid: valid, Message: msg})
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := decodeDraft(w, r)
		if !ok {
			return
		}

		instances, res, err := svc.Book(r.Context(), draft)
		if err != nil {
			if errors.Is(err, appointment.ErrValidationFailed) {
				writeJSON(w, http.StatusUnprocessableEntity, toVerdictResponse(res))
				return
			}
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookResponse{
			Appointments: toAppointmentResponses(instances),
			Verdict:      toVerdictResponse(res),
		})
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt.Appointment))
	}
}

func listPatientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appts, err := svc.ListPatientAppointments(r.Context(), id)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func listCalendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := time.Parse(timeLayout, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must look like "+timeLayout)
			return
		}
		to, err := time.Parse(timeLayout, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must look like "+timeLayout)
			return
		}

		var therapistID *uuid.UUID
		if raw := r.URL.Query().Get("therapist_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
				return
			}
			therapistID = &id
		}

		appts, err := svc.ListCalendar(r.Context(), from, to, therapistID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleCancelError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt.Appointment))
	}
}

func cancelSeriesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req CancelSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		pivot, err := time.Parse(dateLayout, req.PivotDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pivot_date", "pivot_date must look like "+dateLayout)
			return
		}

		n, err := svc.CancelSeries(r.Context(), id, pivot)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, CancelSeriesResponse{Canceled: n})
	}
}

// Helpers

func decodeDraft(w http.ResponseWriter, r *http.Request) (draft scheduling.Appointment, ok bool) {
	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return draft, false
	}

	draft, err := req.toDraft()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
		return draft, false
	}

	return draft, true
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrTherapistNotFound):
		writeError(w, http.StatusNotFound, "therapist_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrCalendarBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "therapist calendar is being modified, please retry shortly")
	default:
		handleLookupError(w, err)
	}
}

func handleCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotCancelable):
		writeError(w, http.StatusConflict, "not_cancelable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
