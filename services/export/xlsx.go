// Package exportsvc renders spreadsheets (excelize) and certificate documents (fpdf).
package exportsvc

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/task"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout = "2006-01-02 15:04"
)

// Filename returns a timestamped export file name, e.g. applications_20210301_120000.xlsx.
func Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.UTC().Format("20060102_150405"))
}

type sheet struct {
	name    string
	headers []string
	widths  []float64
}

// writeSheet writes a single sheet workbook; row returns the cell values of the i-th row.
func writeSheet(w io.Writer, sh sheet, n int, row func(i int) []interface{}) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sh.name); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	for i, header := range sh.headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sh.name, cell, header); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(sh.headers), 1)
	if err := f.SetCellStyle(sh.name, "A1", last, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}
	for i, width := range sh.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return errors.Wrap(err, "sizing columns")
		}
	}

	for i := 0; i < n; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row(i)
		if err := f.SetSheetRow(sh.name, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// Applications writes the applications as an .xlsx workbook.
func Applications(w io.Writer, apps []application.Application) error {
	sh := sheet{
		name: "Applications",
		headers: []string{
			"Full name", "Email", "Phone", "City", "Track", "Experience", "Motivation", "GitHub",
			"Status", "Review note", "Submitted", "Reviewed",
		},
		widths: []float64{24, 30, 16, 16, 16, 40, 40, 30, 12, 30, 18, 18},
	}
	return writeSheet(w, sh, len(apps), func(i int) []interface{} {
		app := apps[i]
		return []interface{}{
			app.FullName, app.Email, app.Phone, app.City, app.Track, app.Experience, app.Motivation,
			app.GithubURL, app.Status, app.ReviewNote, formatTime(app.CreatedAt), formatTime(app.ReviewedAt),
		}
	})
}

// Submissions writes the submissions as an .xlsx workbook.
func Submissions(w io.Writer, subs []task.Submission) error {
	sh := sheet{
		name: "Submissions",
		headers: []string{
			"Task", "Participant", "Status", "Score", "Late", "Link", "File", "Comment", "Feedback",
			"Submitted", "Evaluated",
		},
		widths: []float64{30, 24, 12, 8, 8, 30, 30, 30, 30, 18, 18},
	}
	return writeSheet(w, sh, len(subs), func(i int) []interface{} {
		s := subs[i]
		var score interface{} = ""
		if s.Score != nil {
			score = *s.Score
		}
		late := "no"
		if s.Late {
			late = "yes"
		}
		return []interface{}{
			s.TaskTitle, s.UserName, s.Status, score, late, s.LinkURL, s.FileURL, s.Comment, s.Feedback,
			formatTime(s.SubmittedAt), formatTimePtr(s.EvaluatedAt),
		}
	})
}
