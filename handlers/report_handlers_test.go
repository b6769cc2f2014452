package handlers

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedMarch(e *testEnv) {
	e.srv.Seed("attendance",
		map[string]any{"id": 100, "student_id": 1, "attendance_date": "2024-03-01", "status": "present"},
		map[string]any{"id": 101, "student_id": 2, "attendance_date": "2024-03-01", "status": "absent", "remarks": "sick"},
		map[string]any{"id": 102, "student_id": 3, "attendance_date": "2024-03-04", "status": "present"},
		map[string]any{"id": 103, "student_id": 1, "attendance_date": "2024-02-28", "status": "absent"},
	)
}

func TestGetSummary(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/summary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Start and end dates required"}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/reports/summary?startDate=03/01/2024&endDate=2024-03-31", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	requests := len(e.srv.Requests())
	w = e.do(t, http.MethodGet, "/api/reports/summary?startDate=2024-03-05&endDate=2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"summary":{
		"totalRecords":0,"presentCount":0,"absentCount":0,"attendanceRate":0,"dateWise":[]
	}}`, w.Body.String())
	assert.Len(t, e.srv.Requests(), requests)

	w = e.do(t, http.MethodGet, "/api/reports/summary?startDate=2024-03-01&endDate=2024-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"summary":{
		"totalRecords":3,"presentCount":2,"absentCount":1,"attendanceRate":66.67,
		"dateWise":[{"date":"2024-03-01","present":1,"absent":1},{"date":"2024-03-04","present":1,"absent":0}]
	}}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/reports/summary?startDate=2024-03-01&endDate=2024-03-31&batch=KL%20University", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Summary struct {
			TotalRecords int `json:"totalRecords"`
			AbsentCount  int `json:"absentCount"`
		} `json:"summary"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Summary.TotalRecords)
	assert.Equal(t, 1, resp.Summary.AbsentCount)
}

func TestGetDailyReport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/daily/2024-03-01?course=CSE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Batch    string           `json:"batch"`
		Course   string           `json:"course"`
		Stats    map[string]any   `json:"stats"`
		Students []map[string]any `json:"students"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "All", resp.Batch)
	assert.Equal(t, "CSE", resp.Course)
	assert.Equal(t, map[string]any{"total": float64(1), "present": float64(1), "absent": float64(0), "percentage": float64(100)}, resp.Stats)
	assert.Equal(t, []string{"B1/002"}, rolls(resp.Students))

	w = e.do(t, http.MethodGet, "/api/reports/daily/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMonthlyReport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/monthly/2024/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"success": true, "year": 2024, "month": 3, "batch": "All", "course": "All",
		"stats": {"total": 3, "present": 2, "absent": 1, "percentage": 66.7},
		"daily": [
			{"date": "2024-03-01", "present": 1, "absent": 1, "total": 2, "percentage": 50},
			{"date": "2024-03-04", "present": 1, "absent": 0, "total": 1, "percentage": 100}
		]
	}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/reports/monthly/2024/13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStudentReport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/student/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/reports/student/1?from_date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Student map[string]any   `json:"student"`
		Stats   map[string]any   `json:"stats"`
		Records []map[string]any `json:"records"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "002", resp.Student["roll_number"])
	assert.Equal(t, float64(1), resp.Stats["total"])
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "2024-03-01", resp.Records[0]["attendance_date"])
}

func TestGetTrends(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/trends?days=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"date":"2024-03-03","present":0,"absent":0},
		{"date":"2024-03-04","present":1,"absent":0},
		{"date":"2024-03-05","present":0,"absent":0}
	]`, w.Body.String())

	var points []map[string]any
	decode(t, e.do(t, http.MethodGet, "/api/reports/trends", nil), &points)
	assert.Len(t, points, 7)

	for _, days := range []string{"0", "abc", "367"} {
		w = e.do(t, http.MethodGet, "/api/reports/trends?days="+days, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, days)
	}
}

func TestExportDailyReport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/export/daily/2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_2024-03-01.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "010", rows[1][0])
	assert.Contains(t, rows[1], "absent")
	assert.Contains(t, rows[2], "not_marked")
}

func TestExportMonthlyReport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(e)

	w := e.do(t, http.MethodGet, "/api/reports/export/monthly/2024/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_report_2024_03.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
