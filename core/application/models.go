package application

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	Statuses = []string{StatusPending, StatusApproved, StatusRejected}

	// OrderingFields are the fields applications may be ordered by.
	OrderingFields = []string{"full_name", "email", "track", "status", "created_at", "reviewed_at"}
)

// Application is a participant registration awaiting admin approval or rejection.
type Application struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	City       string    `json:"city"`
	Track      string    `json:"track"`
	Experience string    `json:"experience"`
	Motivation string    `json:"motivation"`
	GithubURL  string    `json:"github_url"`
	Status     string    `json:"status"`
	ReviewNote string    `json:"review_note"`
	ReviewerID string    `json:"reviewer_id"`
	UserID     string    `json:"user_id"` // account created on approval
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

func (app Application) IsPending() bool { return app.Status == StatusPending }

// NewApplication contains what an applicant submits.
type NewApplication struct {
	FullName   string `json:"full_name" validate:"required,notblank,max=120"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	City       string `json:"city" validate:"omitempty,max=80"`
	Track      string `json:"track" validate:"required,notblank,max=80"`
	Experience string `json:"experience" validate:"omitempty,max=2000"`
	Motivation string `json:"motivation" validate:"required,notblank,max=4000"`
	GithubURL  string `json:"github_url" validate:"omitempty,url,max=255"`
}

func (na *NewApplication) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	na.FullName = core.CleanName(na.FullName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.City = core.CleanName(na.City)
	na.Track = core.CleanString(na.Track, true /* lower */)
	na.Experience = core.CleanString(na.Experience)
	na.Motivation = core.CleanString(na.Motivation)
	na.GithubURL = core.CleanString(na.GithubURL)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckEmailAvailable(ctx, na.Email)
}

// Review is the admin's decision payload. A note is required when rejecting.
type Review struct {
	Note string `json:"note" validate:"max=2000"`
}

func (r *Review) Validate(validate *validator.Validate, rejecting bool) error {
	r.Note = core.CleanString(r.Note)
	if err := validate.Struct(r); err != nil {
		return err
	}
	if rejecting && r.Note == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "note", Error: "a note is required when rejecting"})
	}
	return nil
}

// Approval is returned once when an application is approved:
// the generated password is never stored in clear and cannot be retrieved again.
type Approval struct {
	Application Application `json:"application"`
	User        user.User   `json:"user"`
	Password    string      `json:"password"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Statuses    []string  `query:"status" json:"status" validate:"omitempty,dive,appstatus"`
	Track       string    `query:"track"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Search = core.CleanString(qf.Search)
	qf.Track = core.CleanString(qf.Track, true /* lower */)
	for i, st := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(st, true /* lower */)
	}
	return validate.Struct(qf)
}

// Stats counts applications per status.
type Stats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}
