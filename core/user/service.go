package user

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	usernameCleaner = regexp.MustCompile(`[^a-z0-9_]+`)
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when a user,
		// other than the excludedUsers, already has the username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// It returns the requested page and the total count of matching users.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
		// CountUsersByRole counts users holding each role.
		CountUsersByRole(ctx context.Context) (map[string]int, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateParticipant(ctx context.Context, name, email, phone string) (User, string, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		CountByRole(ctx context.Context) (map[string]int, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		cache   core.Cache
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, cache core.Cache, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
		cache:  cache,
		logger: logger,
	}
}

// conflictError turns ErrUsernameExists and ErrEmailExists into a validation error on their field.
// ok is false for any other error.
func conflictError(err error) (verr error, ok bool) {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err, false
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()}), true
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		if verr, ok := conflictError(err); ok {
			return verr
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if verr, ok := conflictError(err); ok {
			return User{}, verr
		}
		return User{}, err
	}
	svc.invalidateDashboards(ctx)
	return usr, nil
}

// CreateParticipant creates an active participant with a derived username and a generated password.
// The clear password is returned once and never stored.
func (svc *Service) CreateParticipant(ctx context.Context, name, email, phone string) (User, string, error) {
	email = core.CleanString(email, true /* lower */)
	if err := svc.repo.CheckUsernameUniqueness(ctx, "", email); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, "", core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, "", errors.Wrap(err, "checking email uniqueness")
	}

	uname, err := svc.availableUsername(ctx, email)
	if err != nil {
		return User{}, "", errors.Wrap(err, "finding available username")
	}
	pwd, err := GeneratePassword(name, uname, email)
	if err != nil {
		return User{}, "", err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      core.CleanString(name),
		Username:  uname,
		Email:     email,
		Phone:     core.CleanString(phone),
		IsActive:  true,
		Roles:     []string{RoleParticipant},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, "", errors.Wrap(err, "setting password")
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if verr, ok := conflictError(err); ok {
			return User{}, "", verr
		}
		return User{}, "", errors.Wrap(err, "creating participant")
	}
	svc.invalidateDashboards(ctx)
	return usr, pwd, nil
}

// UsernameFromEmail derives a valid username from the local part of an email address.
func UsernameFromEmail(email string) string {
	local := strings.SplitN(core.CleanString(email, true /* lower */), "@", 2)[0]
	base := strings.Trim(usernameCleaner.ReplaceAllString(local, "_"), "_")
	if base == "" {
		base = "participant"
	}
	if len(base) < 6 {
		base += "_camp"
	}
	return base
}

func (svc *Service) availableUsername(ctx context.Context, email string) (string, error) {
	base := UsernameFromEmail(email)
	for i := 1; i <= 1000; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}
		_, err := svc.repo.GetUser(ctx, GetFilter{Username: candidate})
		if errors.Cause(err) == ErrNotFound {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.Errorf("no available username for %q", base)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrdering(ordering, OrderingFields...), page)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		if verr, ok := conflictError(err); ok {
			return User{}, verr
		}
		return User{}, err
	}
	svc.invalidateDashboards(ctx)
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.repo.DeleteUsersByID(ctx, ids...); err != nil {
		return err
	}
	svc.invalidateDashboards(ctx)
	return nil
}

func (svc *Service) invalidateDashboards(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyAdminDashboard, core.CacheKeyInstructorDashboard); err != nil {
		svc.logger.Warn("invalidating dashboard cache", err)
	}
}

func (svc *Service) CountByRole(ctx context.Context) (map[string]int, error) {
	return svc.repo.CountUsersByRole(ctx)
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

// RequestPasswordReset emails a password reset link to the active user owning the email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: svc.tokens.makeToken(usr),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(errors.New("invalid token"))

	uid, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
