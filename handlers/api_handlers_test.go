package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-tracker-go/attendance"
	"attendance-tracker-go/db"
	"attendance-tracker-go/db/postgresttest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	router *gin.Engine
	srv    *postgresttest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := postgresttest.New()
	t.Cleanup(srv.Close)
	srv.Unique("attendance", "student_id", "attendance_date")
	srv.Seed("students",
		map[string]any{"id": 1, "roll_number": "002", "first_name": "Ana", "last_name": "B", "batch": "B1", "course": "CSE", "status": "active"},
		map[string]any{"id": 2, "roll_number": "010", "first_name": "Kai", "last_name": "L", "batch": "KL University", "course": "ECE", "status": "active"},
		map[string]any{"id": 3, "roll_number": "001", "first_name": "Ben", "last_name": "C", "batch": "B1", "course": "ECE", "status": "active"},
		map[string]any{"id": 4, "roll_number": "003", "first_name": "Old", "last_name": "D", "batch": "B1", "course": "CSE", "status": "inactive"},
	)

	client, err := db.NewClient(db.ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	store := db.NewStore(client)
	rec := attendance.NewReconciler(store, nil)
	rec.Now = func() time.Time { return fixedNow }

	h := NewAPIHandler(store, rec, nil)
	h.Now = func() time.Time { return fixedNow }
	return &testEnv{router: NewRouter(h), srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(adminHeader, "admin-1")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func rolls(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprint(r["batch"], "/", r["roll_number"])
	}
	return out
}

func TestRequireAdmin(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Ping stays open.
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Pong!","redis":"disabled"}`, w.Body.String())
}

func TestGetStudents_SortedRoster(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success  bool             `json:"success"`
		Students []map[string]any `json:"students"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"KL University/010", "B1/001", "B1/002"}, rolls(resp.Students))

	w = e.do(t, http.MethodGet, "/api/students?batch=B1&course=ECE", nil)
	decode(t, w, &resp)
	assert.Equal(t, []string{"B1/001"}, rolls(resp.Students))
}

// The plain listing, the by-date view and the daily report share one order.
func TestRosterOrder_SameAcrossEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Seed("attendance",
		map[string]any{"id": 100, "student_id": 1, "attendance_date": "2024-03-01", "status": "present"},
		map[string]any{"id": 101, "student_id": 2, "attendance_date": "2024-03-01", "status": "absent"},
		map[string]any{"id": 102, "student_id": 3, "attendance_date": "2024-03-01", "status": "present"},
	)

	var listing struct {
		Students []map[string]any `json:"students"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/students", nil), &listing)

	var byDate struct {
		Attendance []map[string]any `json:"attendance"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/attendance/by-date?date=2024-03-01", nil), &byDate)

	var daily struct {
		Students []map[string]any `json:"students"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/reports/daily/2024-03-01", nil), &daily)

	want := rolls(listing.Students)
	assert.Equal(t, want, rolls(byDate.Attendance))
	assert.Equal(t, want, rolls(daily.Students))
}

func TestGetAttendanceByDate_LeftJoin(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Seed("attendance", map[string]any{"id": 100, "student_id": 3, "attendance_date": "2024-03-01", "status": "present", "remarks": "ok"})

	w := e.do(t, http.MethodGet, "/api/attendance/by-date?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Attendance []map[string]any `json:"attendance"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Attendance, 3)

	marked := resp.Attendance[1]
	assert.Equal(t, "present", marked["status"])
	assert.Equal(t, float64(100), marked["attendance_id"])
	for _, i := range []int{0, 2} {
		assert.Nil(t, resp.Attendance[i]["status"])
		assert.Nil(t, resp.Attendance[i]["attendance_id"])
	}

	w = e.do(t, http.MethodGet, "/api/attendance/by-date?date=March", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAttendanceByDate_DefaultsToToday(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/attendance/by-date", nil)
	require.Equal(t, http.StatusOK, w.Code)

	reqs := e.srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, []string{"eq.2024-03-05"}, last.Query["attendance_date"])
}

func TestMarkAttendance(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Seed("attendance", map[string]any{"id": 100, "student_id": 1, "attendance_date": "2024-03-01", "status": "present"})

	w := e.do(t, http.MethodPost, "/api/attendance/mark", map[string]any{
		"attendance_date": "2024-03-01",
		"attendance_records": []map[string]any{
			{"student_id": 1, "status": "absent"},
			{"student_id": 2, "status": "present", "remarks": "late bus"},
			{"student_id": 3, "status": "maybe"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Attendance marked for 2 students","count":2,"submitted":3}`, w.Body.String())

	rows := e.srv.Rows("attendance")
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "admin-1", r["marked_by"])
	}
}

func TestMarkAttendance_Validation(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/attendance/mark", map[string]any{"attendance_records": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/attendance/mark", map[string]any{
		"attendance_date":    "01-03-2024",
		"attendance_records": []map[string]any{{"student_id": 1, "status": "present"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, e.srv.Requests())
}

func TestImportAttendance(t *testing.T) {
	e := newTestEnv(t)

	f := excelize.NewFile()
	for i, row := range [][]interface{}{{"Roll", "Status", "Remarks"}, {"001", "present"}, {"010", "absent", "sick"}, {"999", "present"}} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var sheet bytes.Buffer
	require.NoError(t, f.Write(&sheet))
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("attendance_date", "2024-03-04"))
	part, err := mw.CreateFormFile("file", "march4.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attendance/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(adminHeader, "admin-1")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	decode(t, w, &resp)
	assert.Equal(t, float64(2), resp["count"])
	assert.Equal(t, []any{"999"}, resp["unmatched"])
	assert.Len(t, e.srv.Rows("attendance"), 2)
}

func TestDeleteAttendance(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Seed("attendance", map[string]any{"id": 100, "student_id": 1, "attendance_date": "2024-03-01", "status": "present"})

	w := e.do(t, http.MethodDelete, "/api/attendance/100", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.srv.Rows("attendance"))

	w = e.do(t, http.MethodDelete, "/api/attendance/100", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAttendanceOverview(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Seed("attendance",
		map[string]any{"id": 100, "student_id": 1, "attendance_date": "2024-03-05", "status": "present"},
		map[string]any{"id": 101, "student_id": 2, "attendance_date": "2024-03-05", "status": "absent"},
	)

	w := e.do(t, http.MethodGet, "/api/attendance/stats/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"present":1,"absent":1,"percentage":33.3,"total":3}`, w.Body.String())
}

func TestGetStudentStats(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/students/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"success": true,
		"batches": ["KL University", "B1"],
		"courses": ["CSE", "ECE"],
		"byBatch": [{"batch":"KL University","count":1},{"batch":"B1","count":2}],
		"byCourse": [{"course":"CSE","count":1},{"course":"ECE","count":2}],
		"totalStudents": 3
	}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/students/stats/overview", nil)
	assert.JSONEq(t, `{"total":3,"byBatch":[{"batch":"KL University","count":1},{"batch":"B1","count":2}]}`, w.Body.String())
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	e := newTestEnv(t)
	e.srv.FailOn = func(method, table string, body any) int { return http.StatusBadGateway }

	w := e.do(t, http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to retrieve students"}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/reports/trends", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
