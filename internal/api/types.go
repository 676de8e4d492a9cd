package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

// Appointment times are timezone-naive local timestamps; the wire format
// carries no offset on purpose.
const (
	timeLayout = "2006-01-02T15:04:05"
	dateLayout = "2006-01-02"
)

type RecurrenceRequest struct {
	Type        string  `json:"type"`
	Interval    int     `json:"interval"`
	EndDate     *string `json:"end_date,omitempty"`
	Occurrences *int    `json:"occurrences,omitempty"`
}

type AppointmentRequest struct {
	ID            string             `json:"id,omitempty"`
	PatientID     string             `json:"patient_id"`
	TherapistID   string             `json:"therapist_id"`
	StartTime     string             `json:"start_time"`
	EndTime       string             `json:"end_time"`
	Type          string             `json:"type,omitempty"`
	Value         float64            `json:"value,omitempty"`
	PaymentStatus string             `json:"payment_status,omitempty"`
	SessionNumber *int               `json:"session_number,omitempty"`
	TotalSessions *int               `json:"total_sessions,omitempty"`
	SeriesID      string             `json:"series_id,omitempty"`
	Recurrence    *RecurrenceRequest `json:"recurrence,omitempty"`
}

func (r AppointmentRequest) toDraft() (scheduling.Appointment, error) {
	var draft scheduling.Appointment

	patientID, err := uuid.Parse(r.PatientID)
	if err != nil {
		return draft, fmt.Errorf("patient_id must be a valid UUID")
	}
	therapistID, err := uuid.Parse(r.TherapistID)
	if err != nil {
		return draft, fmt.Errorf("therapist_id must be a valid UUID")
	}

	start, err := time.Parse(timeLayout, r.StartTime)
	if err != nil {
		return draft, fmt.Errorf("start_time must look like %s", timeLayout)
	}
	end, err := time.Parse(timeLayout, r.EndTime)
	if err != nil {
		return draft, fmt.Errorf("end_time must look like %s", timeLayout)
	}

	draft = scheduling.Appointment{
		PatientID:     patientID,
		TherapistID:   therapistID,
		StartTime:     start,
		EndTime:       end,
		Type:          scheduling.AppointmentType(r.Type),
		Value:         r.Value,
		PaymentStatus: scheduling.PaymentStatus(r.PaymentStatus),
		SessionNumber: r.SessionNumber,
		TotalSessions: r.TotalSessions,
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return draft, fmt.Errorf("id must be a valid UUID")
		}
		draft.ID = id
	}
	if r.SeriesID != "" {
		sid, err := uuid.Parse(r.SeriesID)
		if err != nil {
			return draft, fmt.Errorf("series_id must be a valid UUID")
		}
		draft.SeriesID = &sid
	}

	if r.Recurrence != nil {
		rule := scheduling.RecurrenceRule{
			Type:        scheduling.RecurrenceType(r.Recurrence.Type),
			Interval:    r.Recurrence.Interval,
			Occurrences: r.Recurrence.Occurrences,
		}
		if r.Recurrence.EndDate != nil {
			end, err := time.Parse(dateLayout, *r.Recurrence.EndDate)
			if err != nil {
				return draft, fmt.Errorf("recurrence end_date must look like %s", dateLayout)
			}
			// End-of-day, so occurrences on the end date itself survive.
			end = end.Add(24*time.Hour - time.Second)
			rule.EndDate = &end
		}
		draft.Recurrence = &rule
	}

	return draft, nil
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	TherapistID   uuid.UUID `json:"therapist_id"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Status        string    `json:"status"`
	Type          string    `json:"type"`
	Value         float64   `json:"value"`
	PaymentStatus string    `json:"payment_status"`
	SeriesID      *string   `json:"series_id,omitempty"`
	SessionNumber *int      `json:"session_number,omitempty"`
	TotalSessions *int      `json:"total_sessions,omitempty"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		TherapistID:   a.TherapistID,
		StartTime:     a.StartTime.Format(timeLayout),
		EndTime:       a.EndTime.Format(timeLayout),
		Status:        string(a.Status),
		Type:          string(a.Type),
		Value:         a.Value,
		PaymentStatus: string(a.PaymentStatus),
		SessionNumber: a.SessionNumber,
		TotalSessions: a.TotalSessions,
	}
	if a.SeriesID != nil {
		s := a.SeriesID.String()
		resp.SeriesID = &s
	}
	return resp
}

func toAppointmentResponses(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

// VerdictResponse mirrors the engine's ValidationResult. Errors block the
// save on the client; warnings and suggestions render as dismissible notes.
type VerdictResponse struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

func toVerdictResponse(res scheduling.ValidationResult) VerdictResponse {
	return VerdictResponse{
		Valid:       res.Valid(),
		Errors:      emptyIfNil(res.Errors),
		Warnings:    emptyIfNil(res.Warnings),
		Suggestions: emptyIfNil(res.Suggestions),
	}
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

type QuickVerdictResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type BookResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Verdict      VerdictResponse       `json:"verdict"`
}

type CancelSeriesRequest struct {
	PivotDate string `json:"pivot_date"`
}

type CancelSeriesResponse struct {
	Canceled int64 `json:"canceled"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
