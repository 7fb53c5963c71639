package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
)

const applicationColumns = `id, full_name, email, phone, city, track, experience, motivation, github_url,
	status, review_note, reviewer_id, user_id, created_at, updated_at, reviewed_at`

type applicationRow struct {
	ID         string      `db:"id"`
	FullName   string      `db:"full_name"`
	Email      string      `db:"email"`
	Phone      string      `db:"phone"`
	City       string      `db:"city"`
	Track      string      `db:"track"`
	Experience string      `db:"experience"`
	Motivation string      `db:"motivation"`
	GithubURL  string      `db:"github_url"`
	Status     string      `db:"status"`
	ReviewNote string      `db:"review_note"`
	ReviewerID null.String `db:"reviewer_id"`
	UserID     null.String `db:"user_id"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
	ReviewedAt null.Time   `db:"reviewed_at"`
}

func toApplicationRow(app application.Application) applicationRow {
	return applicationRow{
		ID:         app.ID,
		FullName:   app.FullName,
		Email:      app.Email,
		Phone:      app.Phone,
		City:       app.City,
		Track:      app.Track,
		Experience: app.Experience,
		Motivation: app.Motivation,
		GithubURL:  app.GithubURL,
		Status:     app.Status,
		ReviewNote: app.ReviewNote,
		ReviewerID: null.NewString(app.ReviewerID, app.ReviewerID != ""),
		UserID:     null.NewString(app.UserID, app.UserID != ""),
		CreatedAt:  app.CreatedAt.UTC(),
		UpdatedAt:  app.UpdatedAt.UTC(),
		ReviewedAt: null.NewTime(app.ReviewedAt.UTC(), !app.ReviewedAt.IsZero()),
	}
}

func (r applicationRow) application() application.Application {
	return application.Application{
		ID:         r.ID,
		FullName:   r.FullName,
		Email:      r.Email,
		Phone:      r.Phone,
		City:       r.City,
		Track:      r.Track,
		Experience: r.Experience,
		Motivation: r.Motivation,
		GithubURL:  r.GithubURL,
		Status:     r.Status,
		ReviewNote: r.ReviewNote,
		ReviewerID: r.ReviewerID.String,
		UserID:     r.UserID.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		ReviewedAt: r.ReviewedAt.Time.UTC(),
	}
}

type applicationRepository struct {
	base
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) application.Repository {
	return &applicationRepository{base{db: db}}
}

// mapApplicationConflict turns a concurrent duplicate that slipped past EmailInUse into the same validation error.
func mapApplicationConflict(err error) error {
	if constraint, ok := uniqueViolation(err); ok && constraint == "applications_active_email_idx" {
		return application.ErrEmailInUse
	}
	return err
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	app.ID = newID()
	q := `INSERT INTO applications (` + applicationColumns + `) VALUES (
		:id, :full_name, :email, :phone, :city, :track, :experience, :motivation, :github_url,
		:status, :review_note, :reviewer_id, :user_id, :created_at, :updated_at, :reviewed_at)`
	if _, err := repo.namedExec(ctx, q, toApplicationRow(app)); err != nil {
		return application.Application{}, errors.Wrap(mapApplicationConflict(err), "inserting application")
	}
	return app, nil
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, filter *application.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]application.Application, int, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "full_name", "email", "city")
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Track != "" {
			w.add("lower(track) = lower(?)", filter.Track)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	total, err := repo.count(ctx, "applications", w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting applications")
	}

	// newest first by default
	q := "SELECT " + applicationColumns + " FROM applications" + w.String() +
		orderBy(ordering, "", "created_at DESC, id ASC") + limitOffset(page)
	var rows []applicationRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting applications")
	}

	apps := make([]application.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.application())
	}
	return apps, total, nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	if !validID(id) {
		return application.Application{}, application.ErrNotFound
	}

	var r applicationRow
	q := "SELECT " + applicationColumns + " FROM applications WHERE id = ?" + forUpdate(repo.base, ctx)
	if err := repo.get(ctx, &r, q, id); err != nil {
		return application.Application{}, trapNoRows(err, application.ErrNotFound, "selecting application")
	}
	return r.application(), nil
}

func (repo *applicationRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	var inUse bool
	q := "SELECT EXISTS (SELECT 1 FROM applications WHERE lower(email) = lower(?) AND status <> ?)"
	err := repo.get(ctx, &inUse, q, email, application.StatusRejected)
	return inUse, errors.Wrap(err, "checking application email")
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	q := `UPDATE applications SET
		full_name = :full_name, email = :email, phone = :phone, city = :city, track = :track,
		experience = :experience, motivation = :motivation, github_url = :github_url, status = :status,
		review_note = :review_note, reviewer_id = :reviewer_id, user_id = :user_id,
		updated_at = :updated_at, reviewed_at = :reviewed_at
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toApplicationRow(app))
	if err != nil {
		return application.Application{}, errors.Wrap(mapApplicationConflict(err), "updating application")
	}
	if n == 0 {
		return application.Application{}, application.ErrNotFound
	}
	return app, nil
}

func (repo *applicationRepository) DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	n, err := repo.exec(ctx, "DELETE FROM applications WHERE id = ANY(?::uuid[])", pq.Array(valid))
	return n, errors.Wrap(err, "deleting applications")
}

func (repo *applicationRepository) CountApplicationsByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := repo.selectAll(ctx, &rows, "SELECT status, COUNT(*) AS count FROM applications GROUP BY status"); err != nil {
		return nil, errors.Wrap(err, "counting applications by status")
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
