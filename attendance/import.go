package attendance

import (
	"log"

	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
)

// EntriesFromSheet resolves sheet rows to roster students by roll number.
// Rows whose roll number matches no active student are returned separately
// and produce no entry.
func EntriesFromSheet(rows []db.SheetRow, roster []models.Student) (entries []models.AttendanceEntry, unmatched []string) {
	byRoll := make(map[string]models.ID, len(roster))
	for _, s := range roster {
		if isActive(s) {
			byRoll[s.RollNumber] = s.ID
		}
	}

	entries = make([]models.AttendanceEntry, 0, len(rows))
	for _, row := range rows {
		id, ok := byRoll[row.RollNumber]
		if !ok {
			log.Printf("Skipping row %d: no active student with roll number '%s'", row.Line, row.RollNumber)
			unmatched = append(unmatched, row.RollNumber)
			continue
		}
		entries = append(entries, models.AttendanceEntry{
			StudentID: id,
			Status:    row.Status,
			Remarks:   row.Remarks,
		})
	}
	return entries, unmatched
}
