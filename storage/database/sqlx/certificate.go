package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/certificate"
)

const certificateColumns = `id, user_id, title, description, file_key, file_url, link_url, issued_at, issued_by, created_at, updated_at`

type certificateRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	FileKey     string      `db:"file_key"`
	FileURL     string      `db:"file_url"`
	LinkURL     string      `db:"link_url"`
	IssuedAt    time.Time   `db:"issued_at"`
	IssuedBy    null.String `db:"issued_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toCertificateRow(cert certificate.Certificate) certificateRow {
	return certificateRow{
		ID:          cert.ID,
		UserID:      cert.UserID,
		Title:       cert.Title,
		Description: cert.Description,
		FileKey:     cert.FileKey,
		FileURL:     cert.FileURL,
		LinkURL:     cert.LinkURL,
		IssuedAt:    cert.IssuedAt.UTC(),
		IssuedBy:    null.NewString(cert.IssuedBy, cert.IssuedBy != ""),
		CreatedAt:   cert.CreatedAt.UTC(),
		UpdatedAt:   cert.UpdatedAt.UTC(),
	}
}

func (r certificateRow) certificate() certificate.Certificate {
	return certificate.Certificate{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		FileKey:     r.FileKey,
		FileURL:     r.FileURL,
		LinkURL:     r.LinkURL,
		IssuedAt:    r.IssuedAt.UTC(),
		IssuedBy:    r.IssuedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type certificateRepository struct {
	base
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{base{db: db}}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	cert.ID = newID()
	q := `INSERT INTO certificates (` + certificateColumns + `) VALUES (
		:id, :user_id, :title, :description, :file_key, :file_url, :link_url, :issued_at, :issued_by, :created_at, :updated_at)`
	if _, err := repo.namedExec(ctx, q, toCertificateRow(cert)); err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return cert, nil
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter *certificate.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]certificate.Certificate, int, error) {
	var w where
	if filter != nil {
		if filter.UserID != "" {
			if !validID(filter.UserID) {
				return []certificate.Certificate{}, 0, nil
			}
			w.add("user_id = ?", filter.UserID)
		}
		w.search(filter.Search, "title", "description")
	}

	total, err := repo.count(ctx, "certificates", w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting certificates")
	}

	q := "SELECT " + certificateColumns + " FROM certificates" + w.String() +
		orderBy(ordering, "", "created_at DESC, id ASC") + limitOffset(page)
	var rows []certificateRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting certificates")
	}

	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.certificate())
	}
	return certs, total, nil
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	if !validID(id) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}

	var r certificateRow
	q := "SELECT " + certificateColumns + " FROM certificates WHERE id = ?" + forUpdate(repo.base, ctx)
	if err := repo.get(ctx, &r, q, id); err != nil {
		return certificate.Certificate{}, trapNoRows(err, certificate.ErrNotFound, "selecting certificate")
	}
	return r.certificate(), nil
}

func (repo *certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	q := `UPDATE certificates SET
		title = :title, description = :description, file_key = :file_key, file_url = :file_url,
		link_url = :link_url, issued_at = :issued_at, updated_at = :updated_at
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toCertificateRow(cert))
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "updating certificate")
	}
	if n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return cert, nil
}

func (repo *certificateRepository) DeleteCertificate(ctx context.Context, id string) error {
	if !validID(id) {
		return certificate.ErrNotFound
	}
	n, err := repo.exec(ctx, "DELETE FROM certificates WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	if n == 0 {
		return certificate.ErrNotFound
	}
	return nil
}

func (repo *certificateRepository) CountCertificates(ctx context.Context) (int, error) {
	n, err := repo.count(ctx, "certificates", where{})
	return n, errors.Wrap(err, "counting certificates")
}
