package certificate

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
)

var (
	// OrderingFields are the fields certificates may be ordered by.
	OrderingFields = []string{"title", "issued_at", "created_at"}

	// FileTypes are the accepted certificate file types.
	FileTypes = []string{core.ContentTypePDF, core.ContentTypePNG, core.ContentTypeJPEG}
)

type Certificate struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileKey     string    `json:"-"`
	FileURL     string    `json:"file_url"`
	LinkURL     string    `json:"link_url"`
	IssuedAt    time.Time `json:"issued_at"`
	IssuedBy    string    `json:"issued_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c Certificate) HasFile() bool { return c.FileKey != "" }

type NewCertificate struct {
	UserID      string    `json:"user_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"omitempty,max=2000"`
	LinkURL     string    `json:"link_url" validate:"omitempty,url,max=500"`
	IssuedAt    time.Time `json:"issued_at"`
}

func (nc *NewCertificate) Validate(validate *validator.Validate) error {
	nc.UserID = core.CleanString(nc.UserID, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.LinkURL = core.CleanString(nc.LinkURL)
	return validate.Struct(nc)
}

type UpdateCertificate struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"omitempty,max=2000"`
	LinkURL     string    `json:"link_url" validate:"omitempty,url,max=500"`
	IssuedAt    time.Time `json:"issued_at"`
}

func (uc *UpdateCertificate) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	uc.LinkURL = core.CleanString(uc.LinkURL)
	return validate.Struct(uc)
}

type QueryFilter struct {
	UserID string `query:"user_id"`
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.UserID = core.CleanString(qf.UserID, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// PDFData is what a generated certificate document shows.
type PDFData struct {
	AppName         string
	CertificateID   string
	ParticipantName string
	Title           string
	Description     string
	IssuedAt        time.Time
}

// PDFRenderer renders certificate documents.
type PDFRenderer interface {
	RenderCertificate(w io.Writer, data PDFData) error
}
