package attendance

import (
	"sort"

	"attendance-tracker-go/models"
)

// batchRank puts the priority batch ahead of all others.
func batchRank(batch string) int {
	if batch == models.PriorityBatch {
		return 0
	}
	return 1
}

// rosterLess orders by (priority, batch, roll number). Roll numbers compare
// as strings since they may be alphanumeric.
func rosterLess(batchA, rollA, batchB, rollB string) bool {
	if ra, rb := batchRank(batchA), batchRank(batchB); ra != rb {
		return ra < rb
	}
	if batchA != batchB {
		return batchA < batchB
	}
	return rollA < rollB
}

// SortRoster sorts students in place, keeping input order among ties.
func SortRoster(students []models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return rosterLess(students[i].Batch, students[i].RollNumber, students[j].Batch, students[j].RollNumber)
	})
}

// SortRosterRows applies the roster order to by-date rows.
func SortRosterRows(rows []models.RosterRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rosterLess(rows[i].Batch, rows[i].RollNumber, rows[j].Batch, rows[j].RollNumber)
	})
}

// SortReportStudents applies the roster order to daily report lines.
func SortReportStudents(rows []models.ReportStudent) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rosterLess(rows[i].Batch, rows[i].RollNumber, rows[j].Batch, rows[j].RollNumber)
	})
}

// SortStudentTotals applies the roster order to per-student totals.
func SortStudentTotals(rows []models.StudentTotals) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Student, rows[j].Student
		return rosterLess(a.Batch, a.RollNumber, b.Batch, b.RollNumber)
	})
}

// SortBatchCounts orders a batch distribution with the priority batch first,
// then by name.
func SortBatchCounts(counts []models.BatchCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return rosterLess(counts[i].Batch, "", counts[j].Batch, "")
	})
}
