package application

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("application not found")
	ErrAlreadyReviewed = core.NewStateError("application already reviewed")
	ErrEmailInUse      = core.NewValidationError(nil, core.FieldError{
		Field: "email",
		Error: "an application with this email is already being processed",
	})
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		// QueryApplications returns the requested page and the total count of matching applications.
		// QueryFilter.Search does a case-insensitive match on one of FullName, Email or City.
		QueryApplications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Application, int, error)
		// GetApplication locks the application for update when ctx carries a transaction.
		GetApplication(ctx context.Context, id string) (Application, error)
		// EmailInUse reports whether a pending or approved application uses the email.
		EmailInUse(ctx context.Context, email string) (bool, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
		DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error)
		CountApplicationsByStatus(ctx context.Context) (map[string]int, error)
	}

	ServiceInterface interface {
		CheckEmailAvailable(ctx context.Context, email string) error
		Submit(ctx context.Context, na NewApplication) (Application, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Application, int, error)
		GetByID(ctx context.Context, id string) (Application, error)
		Approve(ctx context.Context, id string, reviewer user.User, note string) (Approval, error)
		Reject(ctx context.Context, id string, reviewer user.User, note string) (Application, error)
		Delete(ctx context.Context, ids ...string) error
		Stats(ctx context.Context) (Stats, error)
	}

	Service struct {
		repo    Repository
		usrSvc  user.ServiceInterface
		tx      core.Transactor
		mailSvc core.EmailService
		cache   core.Cache
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	repo Repository,
	usrSvc user.ServiceInterface,
	tx core.Transactor,
	mailSvc core.EmailService,
	cache core.Cache,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		usrSvc:  usrSvc,
		tx:      tx,
		mailSvc: mailSvc,
		cache:   cache,
		logger:  logger,
	}
}

// CheckEmailAvailable fails when the email belongs to a user or to an application being processed.
// Rejected applicants may apply again.
func (svc *Service) CheckEmailAvailable(ctx context.Context, email string) error {
	inUse, err := svc.repo.EmailInUse(ctx, email)
	if err != nil {
		return errors.Wrap(err, "checking application email")
	}
	if inUse {
		return ErrEmailInUse
	}

	if _, err = svc.usrSvc.GetByEmail(ctx, email); err == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	} else if errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "checking user email")
	}
	return nil
}

func (svc *Service) Submit(ctx context.Context, na NewApplication) (Application, error) {
	now := time.Now().UTC()
	app, err := svc.repo.CreateApplication(ctx, Application{
		FullName:   na.FullName,
		Email:      na.Email,
		Phone:      na.Phone,
		City:       na.City,
		Track:      na.Track,
		Experience: na.Experience,
		Motivation: na.Motivation,
		GithubURL:  na.GithubURL,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Application{}, errors.Wrap(err, "creating application")
	}
	svc.invalidateDashboard(ctx)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FullName, Address: app.Email}},
		Subject:      "We received your application",
		TemplateName: "application_received",
		TemplateData: app,
	})
	return app, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Application, int, error) {
	return svc.repo.QueryApplications(ctx, filter, core.CleanOrdering(ordering, OrderingFields...), page)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplication(ctx, id)
}

type approvedData struct {
	FullName string
	Note     string
	Username string
	Password string
}

// Approve creates the participant account and marks the application approved, atomically.
// Only pending applications can be approved.
func (svc *Service) Approve(ctx context.Context, id string, reviewer user.User, note string) (Approval, error) {
	var approval Approval

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := svc.repo.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if !app.IsPending() {
			return ErrAlreadyReviewed
		}

		usr, pwd, err := svc.usrSvc.CreateParticipant(ctx, app.FullName, app.Email, app.Phone)
		if err != nil {
			return errors.Wrap(err, "creating participant")
		}

		now := time.Now().UTC()
		app.Status = StatusApproved
		app.ReviewNote = note
		app.ReviewerID = reviewer.ID
		app.UserID = usr.ID
		app.ReviewedAt = now
		app.UpdatedAt = now
		if app, err = svc.repo.UpdateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "updating application")
		}

		approval = Approval{Application: app, User: usr, Password: pwd}
		return nil
	})
	if err != nil {
		return Approval{}, err
	}
	svc.invalidateDashboard(ctx)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: approval.User.Name, Address: approval.User.Email}},
		Subject:      "Your application has been approved",
		TemplateName: "application_approved",
		TemplateData: approvedData{
			FullName: approval.Application.FullName,
			Note:     note,
			Username: approval.User.Username,
			Password: approval.Password,
		},
	})
	return approval, nil
}

// Reject marks a pending application rejected.
func (svc *Service) Reject(ctx context.Context, id string, reviewer user.User, note string) (Application, error) {
	var app Application

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if app, err = svc.repo.GetApplication(ctx, id); err != nil {
			return err
		}
		if !app.IsPending() {
			return ErrAlreadyReviewed
		}

		now := time.Now().UTC()
		app.Status = StatusRejected
		app.ReviewNote = note
		app.ReviewerID = reviewer.ID
		app.ReviewedAt = now
		app.UpdatedAt = now
		app, err = svc.repo.UpdateApplication(ctx, app)
		return errors.Wrap(err, "updating application")
	})
	if err != nil {
		return Application{}, err
	}
	svc.invalidateDashboard(ctx)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FullName, Address: app.Email}},
		Subject:      "About your application",
		TemplateName: "application_rejected",
		TemplateData: struct{ FullName, Note string }{app.FullName, note},
	})
	return app, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.repo.DeleteApplicationsByID(ctx, ids...); err != nil {
		return errors.Wrap(err, "deleting applications")
	}
	svc.invalidateDashboard(ctx)
	return nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := svc.repo.CountApplicationsByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting applications")
	}
	stats := Stats{
		Pending:  counts[StatusPending],
		Approved: counts[StatusApproved],
		Rejected: counts[StatusRejected],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

func (svc *Service) invalidateDashboard(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyAdminDashboard); err != nil {
		svc.logger.Warn("invalidating admin dashboard cache", err)
	}
}
