package handler

import (
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
)

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func eventJSON(ev domain.ClockEvent) map[string]any {
	return map[string]any{
		"id":         ev.ID,
		"userId":     ev.UserID,
		"businessId": ev.BusinessID,
		"terminalId": ev.TerminalID,
		"type":       string(ev.Type),
		"method":     string(ev.Method),
		"timestamp":  ev.Timestamp.Format(time.RFC3339),
		"locationId": ev.LocationID,
	}
}

func shiftJSON(s domain.Shift) map[string]any {
	return map[string]any{
		"id":            s.ID,
		"userId":        s.UserID,
		"businessId":    s.BusinessID,
		"clockInId":     s.ClockInID,
		"clockOutId":    uuidOrNil(s.ClockOutID),
		"status":        string(s.Status),
		"startedAt":     s.StartedAt.Format(time.RFC3339),
		"endedAt":       timeOrNil(s.EndedAt),
		"totalHours":    s.TotalHours,
		"regularHours":  s.RegularHours,
		"overtimeHours": s.OvertimeHours,
		"timeShiftId":   uuidOrNil(s.TimeShiftID),
	}
}

func breakJSON(b domain.Break) map[string]any {
	return map[string]any{
		"id":        b.ID,
		"shiftId":   b.ShiftID,
		"userId":    b.UserID,
		"type":      string(b.Type),
		"isPaid":    b.IsPaid,
		"startedAt": b.StartedAt.Format(time.RFC3339),
		"endedAt":   timeOrNil(b.EndedAt),
	}
}

func correctionJSON(c domain.TimeCorrection) map[string]any {
	return map[string]any{
		"id":             c.ID,
		"clockEventId":   uuidOrNil(c.ClockEventID),
		"shiftId":        uuidOrNil(c.ShiftID),
		"correctionType": string(c.CorrectionType),
		"originalTime":   c.OriginalTime.Format(time.RFC3339),
		"correctedTime":  c.CorrectedTime.Format(time.RFC3339),
		"reason":         c.Reason,
		"requestedBy":    c.RequestedBy,
		"status":         string(c.Status),
		"approvedBy":     c.ApprovedBy,
		"processedAt":    timeOrNil(c.ProcessedAt),
	}
}

func scheduleJSON(s domain.Schedule, now time.Time) map[string]any {
	return map[string]any{
		"id":               s.ID,
		"staffId":          s.StaffID,
		"startTime":        s.StartTime.Format(time.RFC3339),
		"endTime":          s.EndTime.Format(time.RFC3339),
		"assignedRegister": s.AssignedRegister,
		"notes":            s.Notes,
		"status":           string(s.Status(now)),
	}
}

func timeShiftJSON(ts domain.TimeShift) map[string]any {
	return map[string]any{
		"id":         ts.ID,
		"userId":     ts.UserID,
		"clockInAt":  ts.ClockInAt.Format(time.RFC3339),
		"clockOutAt": timeOrNil(ts.ClockOutAt),
		"status":     string(ts.Status),
	}
}
