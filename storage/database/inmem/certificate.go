package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cert.ID = uuid.New().String()
	put(ctx, repo.db.certificates, cert.ID, cert)
	return cert, nil
}

func certificateValue(cert certificate.Certificate, field string) interface{} {
	switch field {
	case "title":
		return cert.Title
	case "issued_at":
		return cert.IssuedAt
	default:
		return cert.CreatedAt
	}
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter *certificate.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]certificate.Certificate, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, cert := range repo.db.certificates {
		if filter != nil {
			if filter.UserID != "" && cert.UserID != filter.UserID {
				continue
			}
			if filter.Search != "" && !matches(filter.Search, cert.Title, cert.Description) {
				continue
			}
		}
		certs = append(certs, cert)
	}

	sortItems(certs, ordering, certificateValue, func(a, b certificate.Certificate) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return paginate(certs, page), len(certs), nil
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cert, ok := repo.db.certificates[id]; ok {
		return cert, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.certificates[cert.ID]; !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	put(ctx, repo.db.certificates, cert.ID, cert)
	return cert, nil
}

func (repo *certificateRepository) DeleteCertificate(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.certificates[id]; !ok {
		return certificate.ErrNotFound
	}
	remove(ctx, repo.db.certificates, id)
	return nil
}

func (repo *certificateRepository) CountCertificates(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.certificates), nil
}
