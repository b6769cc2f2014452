package attendance

import (
	"testing"

	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
	"github.com/stretchr/testify/assert"
)

func TestEntriesFromSheet(t *testing.T) {
	roster := []models.Student{
		student("1", "B1", "001"),
		student("2", "B1", "002"),
		{ID: "3", Batch: "B1", RollNumber: "003", Status: "inactive"},
	}
	rows := []db.SheetRow{
		{Line: 2, RollNumber: "002", Status: "absent", Remarks: "sick"},
		{Line: 3, RollNumber: "003", Status: "present"},
		{Line: 4, RollNumber: "001", Status: "present"},
		{Line: 5, RollNumber: "404", Status: "present"},
	}

	entries, unmatched := EntriesFromSheet(rows, roster)
	assert.Equal(t, []models.AttendanceEntry{
		{StudentID: "2", Status: "absent", Remarks: "sick"},
		{StudentID: "1", Status: "present"},
	}, entries)
	assert.Equal(t, []string{"003", "404"}, unmatched)
}
