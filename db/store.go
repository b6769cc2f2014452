package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"attendance-tracker-go/models"
)

const (
	studentsTable   = "students"
	attendanceTable = "attendance"

	// joinedStudentColumns embeds the owning student into attendance rows.
	joinedStudentColumns = "*,students(roll_number,first_name,last_name,batch,course)"
)

// Store reads and writes the students and attendance tables.
type Store struct {
	Client *Client
}

// NewStore creates a new Store instance
func NewStore(client *Client) *Store {
	return &Store{Client: client}
}

// --- Student Operations ---

// ActiveStudents returns active students, optionally narrowed by batch and
// course, ordered by batch then roll number.
func (s *Store) ActiveStudents(ctx context.Context, batch, course string) ([]models.Student, error) {
	q := s.Client.Table(studentsTable).Select("*").Eq("status", models.StudentActive)
	if batch != "" {
		q = q.Eq("batch", batch)
	}
	if course != "" {
		q = q.Eq("course", course)
	}
	res, err := q.Order("batch", false).Order("roll_number", false).Execute(ctx)
	if err != nil {
		log.Printf("Error getting active students (batch: '%s', course: '%s'): %v", batch, course, err)
		return nil, fmt.Errorf("failed to get students: %w", err)
	}

	students := []models.Student{}
	if err := res.Decode(&students); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}
	return students, nil
}

// StudentByID returns nil, nil when the student does not exist.
func (s *Store) StudentByID(ctx context.Context, id models.ID) (*models.Student, error) {
	res, err := s.Client.Table(studentsTable).Select("*").Eq("id", id).Execute(ctx)
	if err != nil {
		log.Printf("Error getting student %s: %v", id, err)
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	students := []models.Student{}
	if err := res.Decode(&students); err != nil {
		return nil, fmt.Errorf("failed to decode student %s: %w", id, err)
	}
	if len(students) == 0 {
		return nil, nil // Not found
	}
	return &students[0], nil
}

// --- Attendance Reads ---

func (s *Store) fetchAttendance(ctx context.Context, q QueryBuilder, what string) ([]models.AttendanceRecord, error) {
	res, err := q.Execute(ctx)
	if err != nil {
		log.Printf("Error getting attendance %s: %v", what, err)
		return nil, fmt.Errorf("failed to get attendance %s: %w", what, err)
	}
	records := []models.AttendanceRecord{}
	if err := res.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode attendance %s: %w", what, err)
	}
	return records, nil
}

// AttendanceOn returns every record for one date.
func (s *Store) AttendanceOn(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	q := s.Client.Table(attendanceTable).Select("*").Eq("attendance_date", date)
	return s.fetchAttendance(ctx, q, "for "+date)
}

// JoinedAttendanceOn returns the records for one date with their students.
func (s *Store) JoinedAttendanceOn(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	q := s.Client.Table(attendanceTable).Select(joinedStudentColumns).Eq("attendance_date", date)
	return s.fetchAttendance(ctx, q, "for "+date)
}

// JoinedAttendanceBetween returns records in [start, end] with their students,
// ordered by date.
func (s *Store) JoinedAttendanceBetween(ctx context.Context, start, end string) ([]models.AttendanceRecord, error) {
	q := s.Client.Table(attendanceTable).Select(joinedStudentColumns).
		Gte("attendance_date", start).
		Lte("attendance_date", end).
		Order("attendance_date", false)
	return s.fetchAttendance(ctx, q, fmt.Sprintf("between %s and %s", start, end))
}

// AttendanceBetween returns date and status of every record in [start, end].
func (s *Store) AttendanceBetween(ctx context.Context, start, end string) ([]models.AttendanceRecord, error) {
	q := s.Client.Table(attendanceTable).Select("student_id,attendance_date,status").
		Gte("attendance_date", start).
		Lte("attendance_date", end)
	return s.fetchAttendance(ctx, q, fmt.Sprintf("between %s and %s", start, end))
}

// StudentAttendance returns one student's records, newest first. Empty
// bounds are left open.
func (s *Store) StudentAttendance(ctx context.Context, studentID models.ID, from, to string) ([]models.AttendanceRecord, error) {
	q := s.Client.Table(attendanceTable).Select("*").Eq("student_id", studentID)
	if from != "" {
		q = q.Gte("attendance_date", from)
	}
	if to != "" {
		q = q.Lte("attendance_date", to)
	}
	return s.fetchAttendance(ctx, q.Order("attendance_date", true), "of student "+studentID.String())
}

// --- Attendance Writes ---

// InsertAttendance inserts one record and returns the stored row when the
// store sends it back.
func (s *Store) InsertAttendance(ctx context.Context, fields map[string]any) (models.AttendanceRecord, error) {
	res, err := s.Client.Table(attendanceTable).Insert(fields).Execute(ctx)
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("failed to insert attendance: %w", err)
	}
	rows := []models.AttendanceRecord{}
	if err := res.Decode(&rows); err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("failed to decode inserted attendance: %w", err)
	}
	if len(rows) == 0 {
		return models.AttendanceRecord{}, nil
	}
	return rows[0], nil
}

// UpdateAttendance patches the target record, addressed by id when known and
// by (student_id, attendance_date) otherwise.
func (s *Store) UpdateAttendance(ctx context.Context, target models.AttendanceRecord, fields map[string]any) error {
	q := s.Client.Table(attendanceTable).Update(fields)
	switch {
	case target.ID != "":
		q = q.Eq("id", target.ID)
	case target.StudentID != "" && target.AttendanceDate != "":
		q = q.Eq("student_id", target.StudentID).Eq("attendance_date", target.AttendanceDate)
	default:
		return errors.New("update target has neither id nor (student_id, attendance_date)")
	}
	if _, err := q.Execute(ctx); err != nil {
		return fmt.Errorf("failed to update attendance: %w", err)
	}
	return nil
}

// DeleteAttendance removes one record by id and reports whether a row was
// deleted.
func (s *Store) DeleteAttendance(ctx context.Context, id models.ID) (bool, error) {
	res, err := s.Client.Table(attendanceTable).Delete().Eq("id", id).Count("exact").Execute(ctx)
	if err != nil {
		log.Printf("Error deleting attendance %s: %v", id, err)
		return false, fmt.Errorf("failed to delete attendance: %w", err)
	}
	return res.Count > 0, nil
}
