package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"attendance-tracker-go/attendance"
	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxTrendDays    = 366
)

func orAll(s string) string {
	if s == "" {
		return "All"
	}
	return s
}

// monthRange returns the first and last calendar date of a month.
func monthRange(c *gin.Context) (year, month int, start, end string, ok bool) {
	year, errY := strconv.Atoi(c.Param("year"))
	month, errM := strconv.Atoi(c.Param("month"))
	if errY != nil || errM != nil || year < 1 || month < 1 || month > 12 {
		fail(c, http.StatusBadRequest, "Year and month must be numbers, month 1-12")
		return 0, 0, "", "", false
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return year, month, first.Format(attendance.DateLayout), last.Format(attendance.DateLayout), true
}

// GetSummary handles GET /api/reports/summary
func (h *APIHandler) GetSummary(c *gin.Context) {
	start := c.Query("startDate")
	end := c.Query("endDate")
	if start == "" || end == "" {
		fail(c, http.StatusBadRequest, "Start and end dates required")
		return
	}
	if !validDate(start) || !validDate(end) {
		fail(c, http.StatusBadRequest, "Dates must be YYYY-MM-DD")
		return
	}
	// A reversed range selects nothing.
	if start > end {
		c.JSON(http.StatusOK, gin.H{"success": true, "summary": attendance.Summary(nil)})
		return
	}

	records, err := h.Store.JoinedAttendanceBetween(c.Request.Context(), start, end)
	if err != nil {
		log.Printf("Error in GetSummary handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	records = attendance.FilterByScope(records, c.Query("batch"), "")

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": attendance.Summary(records)})
}

// GetDailyReport handles GET /api/reports/daily/:date
func (h *APIHandler) GetDailyReport(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		fail(c, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		return
	}
	batch, course := c.Query("batch"), c.Query("course")

	records, err := h.Store.JoinedAttendanceOn(c.Request.Context(), date)
	if err != nil {
		log.Printf("Error in GetDailyReport handler for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to build daily report")
		return
	}
	records = attendance.FilterByScope(records, batch, course)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"date":     date,
		"batch":    orAll(batch),
		"course":   orAll(course),
		"stats":    attendance.Summarize(records),
		"students": attendance.ReportStudents(records),
	})
}

// GetMonthlyReport handles GET /api/reports/monthly/:year/:month
func (h *APIHandler) GetMonthlyReport(c *gin.Context) {
	year, month, start, end, ok := monthRange(c)
	if !ok {
		return
	}
	batch, course := c.Query("batch"), c.Query("course")

	records, err := h.Store.JoinedAttendanceBetween(c.Request.Context(), start, end)
	if err != nil {
		log.Printf("Error in GetMonthlyReport handler for %d-%02d: %v", year, month, err)
		fail(c, http.StatusInternalServerError, "Failed to build monthly report")
		return
	}
	records = attendance.FilterByScope(records, batch, course)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"year":    year,
		"month":   month,
		"batch":   orAll(batch),
		"course":  orAll(course),
		"stats":   attendance.Summarize(records),
		"daily":   attendance.DailyStats(records),
	})
}

// GetStudentReport handles GET /api/reports/student/:studentId
func (h *APIHandler) GetStudentReport(c *gin.Context) {
	studentID := models.ID(c.Param("studentId"))
	from, to := c.Query("from_date"), c.Query("to_date")
	if (from != "" && !validDate(from)) || (to != "" && !validDate(to)) {
		fail(c, http.StatusBadRequest, "Dates must be YYYY-MM-DD")
		return
	}
	ctx := c.Request.Context()

	student, err := h.Store.StudentByID(ctx, studentID)
	if err != nil {
		log.Printf("Error in GetStudentReport handler for %s: %v", studentID, err)
		fail(c, http.StatusInternalServerError, "Failed to build student report")
		return
	}
	if student == nil {
		fail(c, http.StatusNotFound, "Student not found")
		return
	}

	records, err := h.Store.StudentAttendance(ctx, studentID, from, to)
	if err != nil {
		log.Printf("Error in GetStudentReport handler for %s: %v", studentID, err)
		fail(c, http.StatusInternalServerError, "Failed to build student report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"student": gin.H{
			"id":          student.ID,
			"roll_number": student.RollNumber,
			"first_name":  student.FirstName,
			"last_name":   student.LastName,
			"batch":       student.Batch,
			"course":      student.Course,
		},
		"stats":   attendance.Summarize(records),
		"records": records,
	})
}

// GetTrends handles GET /api/reports/trends
func (h *APIHandler) GetTrends(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(attendance.DefaultTrendDays)))
	if err != nil || days < 1 || days > maxTrendDays {
		fail(c, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", maxTrendDays))
		return
	}

	now := h.Now()
	start, end := attendance.TrendRange(now, days)
	records, err := h.Store.AttendanceBetween(c.Request.Context(), start, end)
	if err != nil {
		log.Printf("Error in GetTrends handler: %v", err)
		c.JSON(http.StatusInternalServerError, []models.TrendPoint{})
		return
	}

	c.JSON(http.StatusOK, attendance.TrendWindow(records, now, days))
}

// --- Export Handlers ---

// ExportDailyReport handles GET /api/reports/export/daily/:date
func (h *APIHandler) ExportDailyReport(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		fail(c, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		return
	}
	ctx := c.Request.Context()

	students, err := h.Store.ActiveStudents(ctx, c.Query("batch"), c.Query("course"))
	if err != nil {
		log.Printf("Error in ExportDailyReport handler for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to export daily report")
		return
	}
	records, err := h.Store.AttendanceOn(ctx, date)
	if err != nil {
		log.Printf("Error in ExportDailyReport handler for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to export daily report")
		return
	}

	var buf bytes.Buffer
	if err := db.WriteDailyWorkbook(&buf, date, attendance.JoinRoster(students, records, date)); err != nil {
		log.Printf("Error writing daily workbook for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to export daily report")
		return
	}
	sendWorkbook(c, fmt.Sprintf("attendance_%s.xlsx", date), &buf)
}

// ExportMonthlyReport handles GET /api/reports/export/monthly/:year/:month
func (h *APIHandler) ExportMonthlyReport(c *gin.Context) {
	year, month, start, end, ok := monthRange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	students, err := h.Store.ActiveStudents(ctx, c.Query("batch"), c.Query("course"))
	if err != nil {
		log.Printf("Error in ExportMonthlyReport handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to export monthly report")
		return
	}
	records, err := h.Store.AttendanceBetween(ctx, start, end)
	if err != nil {
		log.Printf("Error in ExportMonthlyReport handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to export monthly report")
		return
	}

	period := fmt.Sprintf("%d-%02d", year, month)
	var buf bytes.Buffer
	if err := db.WriteMonthlyWorkbook(&buf, period, attendance.PerStudent(students, records)); err != nil {
		log.Printf("Error writing monthly workbook for %s: %v", period, err)
		fail(c, http.StatusInternalServerError, "Failed to export monthly report")
		return
	}
	sendWorkbook(c, fmt.Sprintf("attendance_report_%d_%02d.xlsx", year, month), &buf)
}

func sendWorkbook(c *gin.Context, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
