package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if app.Status != application.StatusRejected {
		for _, other := range repo.db.applications {
			if strings.EqualFold(other.Email, app.Email) && other.Status != application.StatusRejected {
				return application.Application{}, application.ErrEmailInUse
			}
		}
	}
	app.ID = uuid.New().String()
	put(ctx, repo.db.applications, app.ID, app)
	return app, nil
}

func applicationValue(app application.Application, field string) interface{} {
	switch field {
	case "full_name":
		return app.FullName
	case "email":
		return app.Email
	case "track":
		return app.Track
	case "status":
		return app.Status
	case "reviewed_at":
		return app.ReviewedAt
	default:
		return app.CreatedAt
	}
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, filter *application.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]application.Application, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]application.Application, 0, len(repo.db.applications))
	for _, app := range repo.db.applications {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, app.FullName, app.Email, app.City) {
				continue
			}
			if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, app.Status) {
				continue
			}
			if filter.Track != "" && !strings.EqualFold(app.Track, filter.Track) {
				continue
			}
			if !inTimeRange(app.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
				continue
			}
		}
		apps = append(apps, app)
	}

	// newest first by default
	sortItems(apps, ordering, applicationValue, func(a, b application.Application) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return paginate(apps, page), len(apps), nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if app, ok := repo.db.applications[id]; ok {
		return app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, app := range repo.db.applications {
		if strings.EqualFold(app.Email, email) && app.Status != application.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.applications[app.ID]; !ok {
		return application.Application{}, application.ErrNotFound
	}
	put(ctx, repo.db.applications, app.ID, app)
	return app, nil
}

func (repo *applicationRepository) DeleteApplicationsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.applications[id]; ok {
			remove(ctx, repo.db.applications, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *applicationRepository) CountApplicationsByStatus(ctx context.Context) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, app := range repo.db.applications {
		counts[app.Status]++
	}
	return counts, nil
}
