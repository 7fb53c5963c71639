package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
)

// Submission types
const (
	TypeFile = "file"
	TypeLink = "link"
	TypeAny  = "any"
)

// Submission statuses
const (
	StatusSubmitted = "submitted"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
)

var (
	SubmissionTypes    = []string{TypeFile, TypeLink, TypeAny}
	SubmissionStatuses = []string{StatusSubmitted, StatusAccepted, StatusRejected}

	// TaskOrderingFields are the fields tasks may be ordered by.
	TaskOrderingFields = []string{"title", "due_at", "created_at"}
	// SubmissionOrderingFields are the fields submissions may be ordered by.
	SubmissionOrderingFields = []string{"submitted_at", "evaluated_at", "status", "score"}

	// FileTypes are the accepted submission file types.
	FileTypes = []string{core.ContentTypePDF, core.ContentTypePNG, core.ContentTypeJPEG, core.ContentTypeZIP, core.ContentTypeText}
)

type Task struct {
	ID             string     `json:"id"`
	LessonID       string     `json:"lesson_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	SubmissionType string     `json:"submission_type"`
	MaxScore       int        `json:"max_score"`
	DueAt          *time.Time `json:"due_at"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t Task) IsLate(at time.Time) bool {
	return t.DueAt != nil && at.After(*t.DueAt)
}

// EditTask is used to create and update tasks.
type EditTask struct {
	LessonID       string     `json:"lesson_id" validate:"omitempty,uuid"`
	Title          string     `json:"title" validate:"required,notblank,max=200"`
	Description    string     `json:"description" validate:"omitempty,max=20000"`
	SubmissionType string     `json:"submission_type" validate:"required,submissiontype"`
	MaxScore       int        `json:"max_score" validate:"required,min=1,max=1000"`
	DueAt          *time.Time `json:"due_at"`
}

func (et *EditTask) Validate(validate *validator.Validate) error {
	et.LessonID = core.CleanString(et.LessonID, true /* lower */)
	et.Title = core.CleanString(et.Title)
	et.SubmissionType = core.CleanString(et.SubmissionType, true /* lower */)
	if et.DueAt != nil {
		due := et.DueAt.UTC()
		et.DueAt = &due
	}
	return validate.Struct(et)
}

type TaskFilter struct {
	LessonID string `query:"lesson_id"`
	Search   string `query:"search"`
}

func (tf *TaskFilter) Clean() {
	tf.LessonID = core.CleanString(tf.LessonID, true /* lower */)
	tf.Search = core.CleanString(tf.Search)
}

type Submission struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	UserID      string     `json:"user_id"`
	LinkURL     string     `json:"link_url"`
	FileKey     string     `json:"-"`
	FileURL     string     `json:"file_url"`
	Comment     string     `json:"comment"`
	Status      string     `json:"status"`
	Score       *int       `json:"score"`
	Feedback    string     `json:"feedback"`
	EvaluatedBy string     `json:"evaluated_by"`
	SubmittedAt time.Time  `json:"submitted_at"`
	EvaluatedAt *time.Time `json:"evaluated_at"`
	Late        bool       `json:"late"`

	// read-only, resolved by repositories
	TaskTitle string `json:"task_title"`
	UserName  string `json:"user_name"`
}

func (s Submission) IsAccepted() bool { return s.Status == StatusAccepted }

type NewSubmission struct {
	LinkURL string `json:"link_url" form:"link_url" validate:"omitempty,url,max=500"`
	Comment string `json:"comment" form:"comment" validate:"omitempty,max=2000"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.LinkURL = core.CleanString(ns.LinkURL)
	ns.Comment = core.CleanString(ns.Comment)
	return validate.Struct(ns)
}

type Evaluation struct {
	Status   string `json:"status" validate:"required,oneof=accepted rejected"`
	Score    *int   `json:"score" validate:"omitempty,min=0"`
	Feedback string `json:"feedback" validate:"omitempty,max=5000"`
}

// Validate checks the evaluation against the task's maximum score.
// A score is required when accepting.
func (ev *Evaluation) Validate(validate *validator.Validate, t Task) error {
	ev.Status = core.CleanString(ev.Status, true /* lower */)
	ev.Feedback = core.CleanString(ev.Feedback)
	if err := validate.Struct(ev); err != nil {
		return err
	}
	if ev.Status == StatusAccepted && ev.Score == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score is required when accepting"})
	}
	if ev.Score != nil && *ev.Score > t.MaxScore {
		return core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score must not exceed the task's max score"})
	}
	return nil
}

type SubmissionFilter struct {
	TaskID   string   `query:"task_id"`
	UserID   string   `query:"user_id"`
	Statuses []string `query:"status" json:"status" validate:"omitempty,dive,submissionstatus"`
	Late     *bool    `query:"late"`
}

func (sf *SubmissionFilter) Validate(validate *validator.Validate) error {
	sf.TaskID = core.CleanString(sf.TaskID, true /* lower */)
	sf.UserID = core.CleanString(sf.UserID, true /* lower */)
	for i, st := range sf.Statuses {
		sf.Statuses[i] = core.CleanString(st, true /* lower */)
	}
	return validate.Struct(sf)
}

// TaskStats summarizes the submissions of a task.
type TaskStats struct {
	TaskID       string   `json:"task_id"`
	Title        string   `json:"title"`
	Submissions  int      `json:"submissions"`
	Accepted     int      `json:"accepted"`
	AverageScore *float64 `json:"average_score"` // of accepted submissions
}
