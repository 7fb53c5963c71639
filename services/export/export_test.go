package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/task"
)

func TestApplications(t *testing.T) {
	created := time.Date(2021, 3, 1, 9, 30, 0, 0, time.UTC)
	apps := []application.Application{
		{FullName: "Jane Doe", Email: "jane@test.cd", Track: "backend", Status: application.StatusPending, CreatedAt: created},
		{FullName: "John Doe", Email: "john@test.cd", Track: "frontend", Status: application.StatusRejected, ReviewNote: "too late", CreatedAt: created, ReviewedAt: created.Add(time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, Applications(&buf, apps))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Applications")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Full name", rows[0][0])
	assert.Equal(t, []string{"Jane Doe", "jane@test.cd"}, rows[1][:2])
	assert.Equal(t, "rejected", rows[2][8])
	assert.Equal(t, "too late", rows[2][9])
	assert.Equal(t, "2021-03-01 09:30", rows[2][10])
	assert.Equal(t, "2021-03-01 10:30", rows[2][11])
}

func TestSubmissions(t *testing.T) {
	score := 8
	subs := []task.Submission{
		{TaskTitle: "Build an API", UserName: "Jane Doe", Status: task.StatusAccepted, Score: &score, Late: true},
		{TaskTitle: "Build an API", UserName: "John Doe", Status: task.StatusSubmitted},
	}

	var buf bytes.Buffer
	require.NoError(t, Submissions(&buf, subs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Submissions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Build an API", "Jane Doe", "accepted", "8", "yes"}, rows[1][:5])
	assert.Equal(t, []string{"Build an API", "John Doe", "submitted", "", "no"}, rows[2][:5])
}

func TestFilename(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 5, 0, time.UTC)
	assert.Equal(t, "applications_20210301_120005.xlsx", Filename("applications", now))
}

func TestRenderCertificate(t *testing.T) {
	var buf bytes.Buffer
	err := NewPDFRenderer().RenderCertificate(&buf, certificate.PDFData{
		AppName:         "Hackcamp",
		CertificateID:   "0b5c6f0e-5d0a-4a57-9f3e-0f3d0f6b8e52",
		ParticipantName: "Jane Doé",
		Title:           "Backend Track Completion",
		Description:     "For completing every task of the backend track.",
		IssuedAt:        time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
