package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"

	StudentActive = "active"

	// PriorityBatch is listed ahead of every other batch.
	PriorityBatch = "KL University"
)

// ID is a row identity as returned by the remote store. Stores may hand out
// integers or strings (uuid); both decode into ID and numeric ids encode back
// as JSON numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	// Only canonical integers go out bare; "007" or "+7" stay strings.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Student represents a student row
type Student struct {
	ID         ID     `json:"id"`
	RollNumber string `json:"roll_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Batch      string `json:"batch"`
	Course     string `json:"course"`
	Status     string `json:"status,omitempty"`
}

// StudentRef is the student sub-record embedded in attendance rows by the
// store's relational select.
type StudentRef struct {
	RollNumber string `json:"roll_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Batch      string `json:"batch"`
	Course     string `json:"course"`
}

// AttendanceRecord represents one attendance row. At most one exists per
// (student_id, attendance_date).
type AttendanceRecord struct {
	ID             ID          `json:"id"`
	StudentID      ID          `json:"student_id"`
	AttendanceDate string      `json:"attendance_date"`
	Status         string      `json:"status"`
	Remarks        *string     `json:"remarks"`
	MarkedBy       ID          `json:"marked_by,omitempty"`
	MarkedAt       *string     `json:"marked_at"`
	Student        *StudentRef `json:"students,omitempty"` // nil when the join did not resolve
}

// AttendanceEntry is one submitted (student, status, remarks) triple.
type AttendanceEntry struct {
	StudentID ID     `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
	Remarks   string `json:"remarks"`
}

// RosterRow is one row of the by-date view: every active student, with the
// attendance fields left null when nothing was recorded.
type RosterRow struct {
	StudentID      ID      `json:"student_id"`
	RollNumber     string  `json:"roll_number"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Course         string  `json:"course"`
	Batch          string  `json:"batch"`
	AttendanceDate string  `json:"attendance_date"`
	Status         *string `json:"status"`
	Remarks        *string `json:"remarks"`
	AttendanceID   *ID     `json:"attendance_id"`
	MarkedAt       *string `json:"marked_at"`
}

// Stats holds scalar counts with a 1-decimal percentage.
type Stats struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// DailyBucket is the present/absent count for one date. TrendPoint shares
// the shape.
type DailyBucket struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
}

type TrendPoint = DailyBucket

// DailyStat is a DailyBucket with its own total and percentage.
type DailyStat struct {
	Date       string  `json:"date"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// RangeSummary is the shape of the range summary report; AttendanceRate is
// rounded to 2 decimals.
type RangeSummary struct {
	TotalRecords   int           `json:"totalRecords"`
	PresentCount   int           `json:"presentCount"`
	AbsentCount    int           `json:"absentCount"`
	AttendanceRate float64       `json:"attendanceRate"`
	DateWise       []DailyBucket `json:"dateWise"`
}

// ReportStudent is a student line of the daily report.
type ReportStudent struct {
	RollNumber string `json:"roll_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Batch      string `json:"batch"`
	Course     string `json:"course"`
	Status     string `json:"status"`
	Remarks    string `json:"remarks"`
}

// StudentTotals is one student's aggregate over a period.
type StudentTotals struct {
	Student    Student `json:"student"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type BatchCount struct {
	Batch string `json:"batch"`
	Count int    `json:"count"`
}

type CourseCount struct {
	Course string `json:"course"`
	Count  int    `json:"count"`
}

// Overview is the dashboard attendance figure for one date, using the
// active roster size as denominator.
type Overview struct {
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
	Total      int     `json:"total"`
}
