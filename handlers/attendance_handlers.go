package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"attendance-tracker-go/attendance"
	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
	"github.com/gin-gonic/gin"
)

type markRequest struct {
	AttendanceRecords []models.AttendanceEntry `json:"attendance_records"`
	AttendanceDate    string                   `json:"attendance_date"`
}

func validDate(s string) bool {
	_, err := time.Parse(attendance.DateLayout, s)
	return err == nil
}

// GetAttendanceByDate handles GET /api/attendance/by-date
func (h *APIHandler) GetAttendanceByDate(c *gin.Context) {
	date := c.DefaultQuery("date", h.today())
	if !validDate(date) {
		fail(c, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		return
	}
	batch := c.Query("batch")
	ctx := c.Request.Context()

	students, err := h.Store.ActiveStudents(ctx, batch, "")
	if err != nil {
		log.Printf("Error getting roster in GetAttendanceByDate handler for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve attendance")
		return
	}
	records, err := h.Store.AttendanceOn(ctx, date)
	if err != nil {
		log.Printf("Error getting records in GetAttendanceByDate handler for %s: %v", date, err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve attendance")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": attendance.JoinRoster(students, records, date)})
}

// MarkAttendance handles POST /api/attendance/mark
func (h *APIHandler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.AttendanceRecords) == 0 {
		fail(c, http.StatusBadRequest, "No attendance records provided")
		return
	}
	if req.AttendanceDate == "" {
		req.AttendanceDate = h.today()
	}
	if !validDate(req.AttendanceDate) {
		fail(c, http.StatusBadRequest, "attendance_date must be YYYY-MM-DD")
		return
	}

	h.reconcile(c, req.AttendanceDate, req.AttendanceRecords, nil)
}

// ImportAttendance handles POST /api/attendance/import
func (h *APIHandler) ImportAttendance(c *gin.Context) {
	date := c.DefaultPostForm("attendance_date", h.today())
	if !validDate(date) {
		fail(c, http.StatusBadRequest, "attendance_date must be YYYY-MM-DD")
		return
	}
	batch := c.PostForm("batch")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		fail(c, http.StatusBadRequest, "Error retrieving uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	log.Printf("Received attendance sheet: %s for %s", header.Filename, date)

	rows, err := db.ReadAttendanceSheet(file)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read attendance sheet: "+err.Error())
		return
	}

	roster, err := h.Store.ActiveStudents(c.Request.Context(), batch, "")
	if err != nil {
		log.Printf("Error getting roster in ImportAttendance handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to import attendance")
		return
	}

	entries, unmatched := attendance.EntriesFromSheet(rows, roster)
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No rows matched an active student", "unmatched": unmatched})
		return
	}

	h.reconcile(c, date, entries, unmatched)
}

func (h *APIHandler) reconcile(c *gin.Context, date string, entries []models.AttendanceEntry, unmatched []string) {
	res, err := h.Reconciler.Mark(c.Request.Context(), date, adminID(c), entries)
	if err != nil {
		log.Printf("Error marking attendance for %s: %v", date, err)
		switch {
		case errors.Is(err, attendance.ErrNoEntries):
			fail(c, http.StatusBadRequest, "No attendance records provided")
		case errors.Is(err, db.ErrLockHeld):
			fail(c, http.StatusConflict, "Attendance for this date is being updated, try again")
		default:
			fail(c, http.StatusInternalServerError, "Failed to mark attendance")
		}
		return
	}

	body := gin.H{
		"success":   true,
		"message":   fmt.Sprintf("Attendance marked for %d students", res.Marked),
		"count":     res.Marked,
		"submitted": res.Submitted,
	}
	if unmatched != nil {
		body["unmatched"] = unmatched
	}
	c.JSON(http.StatusOK, body)
}

// DeleteAttendance handles DELETE /api/attendance/:attendanceId
func (h *APIHandler) DeleteAttendance(c *gin.Context) {
	id := c.Param("attendanceId")
	if id == "" {
		fail(c, http.StatusBadRequest, "Attendance ID is required")
		return
	}

	deleted, err := h.Store.DeleteAttendance(c.Request.Context(), models.ID(id))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete attendance")
		return
	}
	if !deleted {
		fail(c, http.StatusNotFound, "Attendance record not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Attendance record deleted"})
}

// GetAttendanceOverview handles GET /api/attendance/stats/overview
func (h *APIHandler) GetAttendanceOverview(c *gin.Context) {
	date := c.DefaultQuery("date", h.today())
	if !validDate(date) {
		fail(c, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		return
	}
	ctx := c.Request.Context()
	empty := gin.H{"present": 0, "absent": 0, "percentage": 0}

	students, err := h.Store.ActiveStudents(ctx, "", "")
	if err != nil {
		log.Printf("Error in GetAttendanceOverview handler: %v", err)
		c.JSON(http.StatusInternalServerError, empty)
		return
	}
	records, err := h.Store.AttendanceOn(ctx, date)
	if err != nil {
		log.Printf("Error in GetAttendanceOverview handler for %s: %v", date, err)
		c.JSON(http.StatusInternalServerError, empty)
		return
	}

	c.JSON(http.StatusOK, attendance.RosterOverview(len(students), records))
}
