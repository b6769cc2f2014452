package db

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"attendance-tracker-go/models"
	"github.com/xuri/excelize/v2"
)

const notMarked = "not_marked"

// SheetRow is one data row of an uploaded attendance sheet.
type SheetRow struct {
	Line       int // 1-based row number in the sheet
	RollNumber string
	Status     string
	Remarks    string
}

// ReadAttendanceSheet reads the first sheet of an Excel stream. Column A is
// the roll number, B the status, C optional remarks; row 1 is a header.
func ReadAttendanceSheet(file io.Reader) ([]SheetRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		log.Printf("Error opening Excel reader: %v", err)
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		log.Printf("Error getting rows from sheet '%s': %v", sheetName, err)
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	out := []SheetRow{}
	for i, row := range rows {
		if i == 0 {
			continue // Skip header row
		}

		var roll, status, remarks string
		if len(row) > 0 {
			roll = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			status = strings.ToLower(strings.TrimSpace(row[1]))
		}
		if len(row) > 2 {
			remarks = strings.TrimSpace(row[2])
		}

		if roll == "" || status == "" {
			log.Printf("Skipping row %d due to missing roll number or status (roll: '%s', status: '%s')", i+1, roll, status)
			continue
		}
		out = append(out, SheetRow{Line: i + 1, RollNumber: roll, Status: status, Remarks: remarks})
	}
	return out, nil
}

// WriteDailyWorkbook writes the by-date roster view as a single-sheet
// workbook. Unmarked students are listed as not_marked.
func WriteDailyWorkbook(w io.Writer, date string, rows []models.RosterRow) error {
	header := []interface{}{"Roll Number", "First Name", "Last Name", "Batch", "Course", "Status", "Remarks"}
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		status, remarks := notMarked, ""
		if r.Status != nil {
			status = *r.Status
		}
		if r.Remarks != nil {
			remarks = *r.Remarks
		}
		data = append(data, []interface{}{r.RollNumber, r.FirstName, r.LastName, r.Batch, r.Course, status, remarks})
	}
	return writeWorkbook(w, "Attendance "+date, header, data)
}

// WriteMonthlyWorkbook writes per-student totals for a month.
func WriteMonthlyWorkbook(w io.Writer, period string, totals []models.StudentTotals) error {
	header := []interface{}{"Roll Number", "First Name", "Last Name", "Batch", "Course", "Total Days", "Present", "Absent", "Attendance %"}
	data := make([][]interface{}, 0, len(totals))
	for _, t := range totals {
		s := t.Student
		data = append(data, []interface{}{s.RollNumber, s.FirstName, s.LastName, s.Batch, s.Course, t.Total, t.Present, t.Absent, t.Percentage})
	}
	return writeWorkbook(w, "Attendance "+period, header, data)
}

func writeWorkbook(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	// Sheet names are capped at 31 characters.
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
