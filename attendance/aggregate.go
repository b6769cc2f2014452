package attendance

import (
	"math"
	"sort"
	"time"

	"attendance-tracker-go/models"
)

// DateLayout is the calendar date format used by the store.
const DateLayout = "2006-01-02"

// DefaultTrendDays is the trend window length when the caller gives none.
const DefaultTrendDays = 7

// round uses banker's rounding: 6.25 becomes 6.2 and 0.125 becomes 0.12.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}

// percentage returns part/whole*100 rounded to places, or 0 when whole is 0.
func percentage(part, whole, places int) float64 {
	if whole <= 0 {
		return 0
	}
	return round(float64(part)/float64(whole)*100, places)
}

func countStatuses(records []models.AttendanceRecord) (present, absent int) {
	for _, r := range records {
		switch r.Status {
		case models.StatusPresent:
			present++
		case models.StatusAbsent:
			absent++
		}
	}
	return present, absent
}

func isActive(s models.Student) bool {
	return s.Status == "" || s.Status == models.StudentActive
}

// JoinRoster left-joins the roster with the records of one date. Every active
// student yields exactly one row; students without a record get null
// attendance fields. Rows come back in roster order.
func JoinRoster(students []models.Student, records []models.AttendanceRecord, date string) []models.RosterRow {
	byStudent := make(map[models.ID]models.AttendanceRecord, len(records))
	for _, r := range records {
		if r.AttendanceDate != "" && r.AttendanceDate != date {
			continue
		}
		byStudent[r.StudentID] = r
	}

	rows := make([]models.RosterRow, 0, len(students))
	for _, s := range students {
		if !isActive(s) {
			continue
		}
		row := models.RosterRow{
			StudentID:      s.ID,
			RollNumber:     s.RollNumber,
			FirstName:      s.FirstName,
			LastName:       s.LastName,
			Course:         s.Course,
			Batch:          s.Batch,
			AttendanceDate: date,
		}
		if a, ok := byStudent[s.ID]; ok {
			status, id := a.Status, a.ID
			row.Status = &status
			row.Remarks = a.Remarks
			row.AttendanceID = &id
			row.MarkedAt = a.MarkedAt
		}
		rows = append(rows, row)
	}
	SortRosterRows(rows)
	return rows
}

// Summarize counts present and absent records. Records with any other
// status are left out of the total.
func Summarize(records []models.AttendanceRecord) models.Stats {
	present, absent := countStatuses(records)
	total := present + absent
	return models.Stats{
		Total:      total,
		Present:    present,
		Absent:     absent,
		Percentage: percentage(present, total, 1),
	}
}

// Summary builds the range summary; its rate keeps 2 decimals where the
// other reports keep 1.
func Summary(records []models.AttendanceRecord) models.RangeSummary {
	present, absent := countStatuses(records)
	total := present + absent
	return models.RangeSummary{
		TotalRecords:   total,
		PresentCount:   present,
		AbsentCount:    absent,
		AttendanceRate: percentage(present, total, 2),
		DateWise:       GroupByDate(records),
	}
}

// GroupByDate buckets records per attendance date, ascending.
func GroupByDate(records []models.AttendanceRecord) []models.DailyBucket {
	index := map[string]int{}
	buckets := []models.DailyBucket{}
	for _, r := range records {
		if r.Status != models.StatusPresent && r.Status != models.StatusAbsent {
			continue
		}
		i, ok := index[r.AttendanceDate]
		if !ok {
			i = len(buckets)
			index[r.AttendanceDate] = i
			buckets = append(buckets, models.DailyBucket{Date: r.AttendanceDate})
		}
		if r.Status == models.StatusPresent {
			buckets[i].Present++
		} else {
			buckets[i].Absent++
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

// DailyStats is GroupByDate with a per-day total and 1-decimal percentage.
func DailyStats(records []models.AttendanceRecord) []models.DailyStat {
	buckets := GroupByDate(records)
	out := make([]models.DailyStat, len(buckets))
	for i, b := range buckets {
		total := b.Present + b.Absent
		out[i] = models.DailyStat{
			Date:       b.Date,
			Present:    b.Present,
			Absent:     b.Absent,
			Total:      total,
			Percentage: percentage(b.Present, total, 1),
		}
	}
	return out
}

// TrendWindow returns one point per calendar day in the window of the given
// length ending on today's date. Days without records stay at zero; records
// outside the window are ignored.
func TrendWindow(records []models.AttendanceRecord, today time.Time, days int) []models.TrendPoint {
	if days < 1 {
		days = DefaultTrendDays
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d-(days-1), 0, 0, 0, 0, today.Location())

	points := make([]models.TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		points[i] = models.TrendPoint{Date: date}
		index[date] = i
	}

	for _, r := range records {
		i, ok := index[r.AttendanceDate]
		if !ok {
			continue
		}
		switch r.Status {
		case models.StatusPresent:
			points[i].Present++
		case models.StatusAbsent:
			points[i].Absent++
		}
	}
	return points
}

// TrendRange reports the first and last date of a trend window.
func TrendRange(today time.Time, days int) (string, string) {
	if days < 1 {
		days = DefaultTrendDays
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d-(days-1), 0, 0, 0, 0, today.Location())
	return start.Format(DateLayout), today.Format(DateLayout)
}

// FilterByScope keeps records whose joined student matches batch and course.
// Empty filters match everything, including rows whose student did not
// resolve; a non-empty filter drops those rows.
func FilterByScope(records []models.AttendanceRecord, batch, course string) []models.AttendanceRecord {
	if batch == "" && course == "" {
		return records
	}
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.Student == nil {
			continue
		}
		if batch != "" && r.Student.Batch != batch {
			continue
		}
		if course != "" && r.Student.Course != course {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ReportStudents lists the joined student of each record, skipping records
// whose student did not resolve.
func ReportStudents(records []models.AttendanceRecord) []models.ReportStudent {
	out := make([]models.ReportStudent, 0, len(records))
	for _, r := range records {
		if r.Student == nil {
			continue
		}
		remarks := ""
		if r.Remarks != nil {
			remarks = *r.Remarks
		}
		out = append(out, models.ReportStudent{
			RollNumber: r.Student.RollNumber,
			FirstName:  r.Student.FirstName,
			LastName:   r.Student.LastName,
			Batch:      r.Student.Batch,
			Course:     r.Student.Course,
			Status:     r.Status,
			Remarks:    remarks,
		})
	}
	SortReportStudents(out)
	return out
}

// PerStudent totals each active student's records. Students with no records
// are kept with zero counts. Percentages keep 2 decimals.
func PerStudent(students []models.Student, records []models.AttendanceRecord) []models.StudentTotals {
	byStudent := map[models.ID][]models.AttendanceRecord{}
	for _, r := range records {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	out := make([]models.StudentTotals, 0, len(students))
	for _, s := range students {
		if !isActive(s) {
			continue
		}
		present, absent := countStatuses(byStudent[s.ID])
		total := present + absent
		out = append(out, models.StudentTotals{
			Student:    s,
			Present:    present,
			Absent:     absent,
			Total:      total,
			Percentage: percentage(present, total, 2),
		})
	}
	SortStudentTotals(out)
	return out
}

// RosterOverview measures one day's attendance against the whole roster
// rather than against the records marked.
func RosterOverview(rosterSize int, records []models.AttendanceRecord) models.Overview {
	present, absent := countStatuses(records)
	return models.Overview{
		Present:    present,
		Absent:     absent,
		Percentage: percentage(present, rosterSize, 1),
		Total:      rosterSize,
	}
}

// Distribution describes the active roster by batch and course.
type Distribution struct {
	Batches       []string             `json:"batches"`
	Courses       []string             `json:"courses"`
	ByBatch       []models.BatchCount  `json:"byBatch"`
	ByCourse      []models.CourseCount `json:"byCourse"`
	TotalStudents int                  `json:"totalStudents"`
}

// Distribute counts active students per batch and per course.
func Distribute(students []models.Student) Distribution {
	batchCounts := map[string]int{}
	courseCounts := map[string]int{}
	total := 0
	for _, s := range students {
		if !isActive(s) {
			continue
		}
		total++
		batchCounts[s.Batch]++
		courseCounts[s.Course]++
	}

	d := Distribution{
		Batches:       make([]string, 0, len(batchCounts)),
		Courses:       make([]string, 0, len(courseCounts)),
		ByBatch:       make([]models.BatchCount, 0, len(batchCounts)),
		ByCourse:      make([]models.CourseCount, 0, len(courseCounts)),
		TotalStudents: total,
	}
	for b, n := range batchCounts {
		d.ByBatch = append(d.ByBatch, models.BatchCount{Batch: b, Count: n})
	}
	SortBatchCounts(d.ByBatch)
	for _, bc := range d.ByBatch {
		d.Batches = append(d.Batches, bc.Batch)
	}

	for c, n := range courseCounts {
		d.Courses = append(d.Courses, c)
		d.ByCourse = append(d.ByCourse, models.CourseCount{Course: c, Count: n})
	}
	sort.Strings(d.Courses)
	sort.Slice(d.ByCourse, func(i, j int) bool { return d.ByCourse[i].Course < d.ByCourse[j].Course })
	return d
}
