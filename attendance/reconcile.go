package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
	"github.com/go-playground/validator/v10"
)

// ErrNoEntries is returned when a mark request carries nothing to write.
var ErrNoEntries = errors.New("no attendance records provided")

// Store is the part of the attendance table the reconciler writes through.
type Store interface {
	AttendanceOn(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	InsertAttendance(ctx context.Context, fields map[string]any) (models.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, target models.AttendanceRecord, fields map[string]any) error
}

// Locker serialises reconciliation per date. Without it two requests for the
// same date can both see "no record" for a student and both insert.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

// MarkResult reports how many submitted entries were written.
type MarkResult struct {
	Marked    int `json:"count"`
	Submitted int `json:"submitted"`
}

// Reconciler turns submitted entries into updates or inserts against the
// records already stored for the date.
type Reconciler struct {
	Store    Store
	Locker   Locker
	Validate *validator.Validate
	Now      func() time.Time
}

// NewReconciler creates a Reconciler. A nil locker falls back to an
// in-process one, which only protects a single instance.
func NewReconciler(store Store, locker Locker) *Reconciler {
	if locker == nil {
		locker = db.NewMutexLocker()
	}
	return &Reconciler{
		Store:    store,
		Locker:   locker,
		Validate: validator.New(),
		Now:      time.Now,
	}
}

// Mark writes entries for date on behalf of markedBy. A failure to read the
// existing records aborts before any write; a failure on a single entry is
// logged and skipped. Nothing is retried.
func (r *Reconciler) Mark(ctx context.Context, date string, markedBy models.ID, entries []models.AttendanceEntry) (MarkResult, error) {
	result := MarkResult{Submitted: len(entries)}
	if len(entries) == 0 {
		return result, ErrNoEntries
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return result, fmt.Errorf("invalid attendance date %q: %w", date, err)
	}

	unlock, err := r.Locker.Lock(ctx, date)
	if err != nil {
		return result, fmt.Errorf("failed to lock attendance for %s: %w", date, err)
	}
	defer unlock()

	records, err := r.Store.AttendanceOn(ctx, date)
	if err != nil {
		return result, fmt.Errorf("failed to load existing attendance for %s: %w", date, err)
	}
	existing := make(map[models.ID]models.AttendanceRecord, len(records))
	for _, rec := range records {
		existing[rec.StudentID] = rec
	}

	for i, entry := range entries {
		if err := r.Validate.Struct(entry); err != nil {
			log.Printf("Skipping attendance entry %d for student %s: %v", i, entry.StudentID, err)
			continue
		}

		fields := map[string]any{
			"status":    entry.Status,
			"remarks":   entry.Remarks,
			"marked_by": markedBy,
			"marked_at": r.Now().UTC().Format(time.RFC3339),
		}

		if rec, ok := existing[entry.StudentID]; ok {
			if err := r.Store.UpdateAttendance(ctx, rec, fields); err != nil {
				log.Printf("Error updating attendance for student %s on %s: %v", entry.StudentID, date, err)
				continue
			}
			result.Marked++
			continue
		}

		fields["student_id"] = entry.StudentID
		fields["attendance_date"] = date
		inserted, err := r.Store.InsertAttendance(ctx, fields)
		if err != nil {
			log.Printf("Error inserting attendance for student %s on %s: %v", entry.StudentID, date, err)
			continue
		}
		// A repeat of this student later in the batch must update, not insert.
		if inserted.ID == "" {
			inserted.StudentID = entry.StudentID
			inserted.AttendanceDate = date
		}
		existing[entry.StudentID] = inserted
		result.Marked++
	}

	log.Printf("Attendance marked for %d of %d students on %s", result.Marked, result.Submitted, date)
	return result, nil
}
