package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// TimesheetHandler exports ended shifts for payroll.
type TimesheetHandler struct {
	Shifts   ports.ShiftRepository
	Location *time.Location
	Now      func() time.Time
}

func (h TimesheetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/timesheets/export", h.export)
}

func (h TimesheetHandler) export(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	from, to, err := parseRangeQuery(r, h.Location, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Shifts.ListEndedBetween(r.Context(), actor.BusinessID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UserID != items[j].UserID {
			return items[i].UserID < items[j].UserID
		}
		return items[i].StartedAt.Before(items[j].StartedAt)
	})

	filenameSuffix := fmt.Sprintf("%s_%s", from.Format("20060102"), to.Format("20060102"))
	switch format {
	case "csv":
		data, err := exportTimesheetCSV(items, h.Location)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"timesheet_%s.csv\"", filenameSuffix))
		_, _ = w.Write(data)
	case "xlsx", "excel":
		data, err := exportTimesheetXLSX(items, h.Location)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"timesheet_%s.xlsx\"", filenameSuffix))
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
	}
}

var timesheetHeader = []string{"Shift ID", "User ID", "Status", "Started At", "Ended At", "Total Hours", "Regular Hours", "Overtime Hours"}

func timesheetRow(s domain.Shift, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	ended := ""
	if s.EndedAt != nil {
		ended = s.EndedAt.In(loc).Format(time.RFC3339)
	}
	return []string{
		s.ID.String(),
		strconv.FormatInt(s.UserID, 10),
		string(s.Status),
		s.StartedAt.In(loc).Format(time.RFC3339),
		ended,
		strconv.FormatFloat(s.TotalHours, 'f', 2, 64),
		strconv.FormatFloat(s.RegularHours, 'f', 2, 64),
		strconv.FormatFloat(s.OvertimeHours, 'f', 2, 64),
	}
}

func exportTimesheetCSV(items []domain.Shift, loc *time.Location) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(timesheetHeader)
	for _, s := range items {
		_ = w.Write(timesheetRow(s, loc))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type userTotals struct {
	userID                   int64
	shifts                   int
	total, regular, overtime float64
}

func exportTimesheetXLSX(items []domain.Shift, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Shifts"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range timesheetHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	var totals []*userTotals
	byUser := map[int64]*userTotals{}
	for r, s := range items {
		row := timesheetRow(s, loc)
		values := []any{row[0], s.UserID, row[2], row[3], row[4], s.TotalHours, s.RegularHours, s.OvertimeHours}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		t, ok := byUser[s.UserID]
		if !ok {
			t = &userTotals{userID: s.UserID}
			byUser[s.UserID] = t
			totals = append(totals, t)
		}
		t.shifts++
		t.total += s.TotalHours
		t.regular += s.RegularHours
		t.overtime += s.OvertimeHours
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 14)
	_ = f.SetColWidth(sheet, "D", "E", 26)
	_ = f.SetColWidth(sheet, "F", "H", 16)

	summary := "Totals"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	for c, v := range []string{"User ID", "Shifts", "Total Hours", "Regular Hours", "Overtime Hours"} {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(summary, cell, v)
	}
	for r, t := range totals {
		for c, v := range []any{t.userID, t.shifts, t.total, t.regular, t.overtime} {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(summary, cell, v)
		}
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "H1", style)
	_ = f.SetCellStyle(summary, "A1", "E1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
