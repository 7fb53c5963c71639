package certificate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("certificate not found")
	ErrNoFile   = core.NewNotFoundError("certificate has no file")

	errNotParticipant = "user must be a participant"
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		// QueryCertificates returns the requested page and the total count of matching certificates.
		// QueryFilter.Search does a case-insensitive match on one of Title or Description.
		QueryCertificates(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Certificate, int, error)
		GetCertificate(ctx context.Context, id string) (Certificate, error)
		UpdateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		DeleteCertificate(ctx context.Context, id string) error
		CountCertificates(ctx context.Context) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nc NewCertificate, issuer user.User) (Certificate, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Certificate, int, error)
		ListForUser(ctx context.Context, usr user.User) ([]Certificate, error)
		GetByID(ctx context.Context, id string) (Certificate, error)
		Update(ctx context.Context, cert Certificate, uc UpdateCertificate) (Certificate, error)
		Delete(ctx context.Context, id string) error
		Upload(ctx context.Context, id string, up core.Upload) (Certificate, error)
		GeneratePDF(ctx context.Context, id string) (Certificate, error)
		// Download returns the certificate if usr may download it.
		Download(ctx context.Context, id string, usr user.User) (Certificate, error)
		OpenFile(ctx context.Context, cert Certificate) (io.ReadCloser, error)
		Count(ctx context.Context) (int, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		usrSvc  user.ServiceInterface
		files   core.FileStorage
		pdf     PDFRenderer
		mailSvc core.EmailService
		cache   core.Cache
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	repo Repository,
	usrSvc user.ServiceInterface,
	files core.FileStorage,
	pdf PDFRenderer,
	mailSvc core.EmailService,
	cache core.Cache,
	logger core.Logger,
) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		usrSvc:  usrSvc,
		files:   files,
		pdf:     pdf,
		mailSvc: mailSvc,
		cache:   cache,
		logger:  logger,
	}
}

func (svc *Service) participant(ctx context.Context, id string) (user.User, error) {
	usr, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return user.User{}, errors.Wrap(err, "finding certificate user")
	}
	if !usr.IsParticipant() {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: errNotParticipant})
	}
	return usr, nil
}

func (svc *Service) Create(ctx context.Context, nc NewCertificate, issuer user.User) (Certificate, error) {
	usr, err := svc.participant(ctx, nc.UserID)
	if err != nil {
		return Certificate{}, err
	}

	now := time.Now().UTC()
	issuedAt := nc.IssuedAt.UTC()
	if nc.IssuedAt.IsZero() {
		issuedAt = now
	}
	cert, err := svc.repo.CreateCertificate(ctx, Certificate{
		UserID:      usr.ID,
		Title:       nc.Title,
		Description: nc.Description,
		LinkURL:     nc.LinkURL,
		IssuedAt:    issuedAt,
		IssuedBy:    issuer.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Certificate{}, errors.Wrap(err, "creating certificate")
	}
	svc.invalidateDashboard(ctx)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You have a new certificate",
		TemplateName: "certificate_issued",
		TemplateData: struct{ Name, Title string }{usr.Name, cert.Title},
	})
	return cert, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Certificate, int, error) {
	return svc.repo.QueryCertificates(ctx, filter, core.CleanOrdering(ordering, OrderingFields...), page)
}

func (svc *Service) ListForUser(ctx context.Context, usr user.User) ([]Certificate, error) {
	certs, _, err := svc.repo.QueryCertificates(
		ctx,
		&QueryFilter{UserID: usr.ID},
		[]core.DBOrdering{{Field: "issued_at"}},
		core.Pagination{},
	)
	return certs, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (Certificate, error) {
	return svc.repo.GetCertificate(ctx, id)
}

func (svc *Service) Update(ctx context.Context, cert Certificate, uc UpdateCertificate) (Certificate, error) {
	cert.Title = uc.Title
	cert.Description = uc.Description
	cert.LinkURL = uc.LinkURL
	if !uc.IssuedAt.IsZero() {
		cert.IssuedAt = uc.IssuedAt.UTC()
	}
	cert.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCertificate(ctx, cert)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteCertificate(ctx, id); err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	svc.removeFile(ctx, cert.FileKey)
	svc.invalidateDashboard(ctx)
	return nil
}

// Upload stores a PDF or image as the certificate file, replacing the previous one.
func (svc *Service) Upload(ctx context.Context, id string, up core.Upload) (Certificate, error) {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	ct, err := up.Check("file", svc.conf.Storage.MaxUploadSize, FileTypes...)
	if err != nil {
		return Certificate{}, err
	}
	return svc.storeFile(ctx, cert, up.Reader, ct, core.ExtensionFor(ct))
}

// GeneratePDF renders the certificate document and stores it as the certificate file.
func (svc *Service) GeneratePDF(ctx context.Context, id string) (Certificate, error) {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	usr, err := svc.usrSvc.GetByID(ctx, cert.UserID)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "finding certificate user")
	}

	var buf bytes.Buffer
	err = svc.pdf.RenderCertificate(&buf, PDFData{
		AppName:         svc.conf.AppName,
		CertificateID:   cert.ID,
		ParticipantName: usr.Name,
		Title:           cert.Title,
		Description:     cert.Description,
		IssuedAt:        cert.IssuedAt,
	})
	if err != nil {
		return Certificate{}, errors.Wrap(err, "rendering certificate")
	}
	return svc.storeFile(ctx, cert, &buf, core.ContentTypePDF, core.ExtensionFor(core.ContentTypePDF))
}

func (svc *Service) storeFile(ctx context.Context, cert Certificate, r io.Reader, contentType, ext string) (Certificate, error) {
	key := fmt.Sprintf("certificates/%s/%s%s", cert.ID, uuid.New().String(), ext)
	stored, err := svc.files.Save(ctx, key, r, contentType)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "saving certificate file")
	}

	oldKey := cert.FileKey
	cert.FileKey = stored.Key
	cert.FileURL = stored.URL
	cert.UpdatedAt = time.Now().UTC()
	if cert, err = svc.repo.UpdateCertificate(ctx, cert); err != nil {
		svc.removeFile(ctx, stored.Key)
		return Certificate{}, errors.Wrap(err, "updating certificate")
	}
	svc.removeFile(ctx, oldKey)
	return cert, nil
}

func (svc *Service) Download(ctx context.Context, id string, usr user.User) (Certificate, error) {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if cert.UserID != usr.ID && !usr.IsAdmin() {
		return Certificate{}, core.ErrPermissionDenied
	}
	if !cert.HasFile() && cert.LinkURL == "" {
		return Certificate{}, ErrNoFile
	}
	return cert, nil
}

func (svc *Service) OpenFile(ctx context.Context, cert Certificate) (io.ReadCloser, error) {
	if !cert.HasFile() {
		return nil, ErrNoFile
	}
	rc, err := svc.files.Open(ctx, cert.FileKey)
	if err == core.ErrFileNotFound {
		return nil, ErrNoFile
	}
	return rc, err
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountCertificates(ctx)
}

func (svc *Service) removeFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := svc.files.Delete(ctx, key); err != nil && err != core.ErrFileNotFound {
		svc.logger.Warn("deleting certificate file "+key, err)
	}
}

func (svc *Service) invalidateDashboard(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyAdminDashboard); err != nil {
		svc.logger.Warn("invalidating admin dashboard cache", err)
	}
}
