package lesson

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

var (
	// OrderingFields are the fields lessons may be ordered by.
	OrderingFields = []string{"position", "title", "created_at"}

	ErrNotFound = core.NewNotFoundError("lesson not found")
)

type Lesson struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	VideoURL  string    `json:"video_url"`
	Position  int       `json:"position"`
	Published bool      `json:"published"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditLesson is used to create and update lessons.
type EditLesson struct {
	Title     string `json:"title" validate:"required,notblank,max=200"`
	Summary   string `json:"summary" validate:"omitempty,max=1000"`
	Content   string `json:"content" validate:"omitempty,max=100000"`
	VideoURL  string `json:"video_url" validate:"omitempty,url,max=500"`
	Position  int    `json:"position" validate:"min=0"`
	Published bool   `json:"published"`
}

func (el *EditLesson) Validate(validate *validator.Validate) error {
	el.Title = core.CleanString(el.Title)
	el.Summary = core.CleanString(el.Summary)
	el.VideoURL = core.CleanString(el.VideoURL)
	return validate.Struct(el)
}

type QueryFilter struct {
	Search    string `query:"search"`
	Published *bool  `query:"published"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type (
	Repository interface {
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// QueryLessons returns the requested page and the total count of matching lessons.
		// QueryFilter.Search does a case-insensitive match on one of Title or Summary.
		QueryLessons(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lesson, int, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// DeleteLesson detaches the lesson's tasks.
		DeleteLesson(ctx context.Context, id string) error
		CountLessons(ctx context.Context) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, el EditLesson, author user.User) (Lesson, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lesson, int, error)
		ListPublished(ctx context.Context) ([]Lesson, error)
		GetByID(ctx context.Context, id string) (Lesson, error)
		GetPublished(ctx context.Context, id string) (Lesson, error)
		Update(ctx context.Context, l Lesson, el EditLesson) (Lesson, error)
		Delete(ctx context.Context, id string) error
		Count(ctx context.Context) (int, error)
	}

	Service struct {
		repo   Repository
		cache  core.Cache
		logger core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, cache core.Cache, logger core.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (svc *Service) Create(ctx context.Context, el EditLesson, author user.User) (Lesson, error) {
	now := time.Now().UTC()
	l, err := svc.repo.CreateLesson(ctx, Lesson{
		Title:     el.Title,
		Summary:   el.Summary,
		Content:   el.Content,
		VideoURL:  el.VideoURL,
		Position:  el.Position,
		Published: el.Published,
		CreatedBy: author.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	svc.invalidateDashboard(ctx)
	return l, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lesson, int, error) {
	ordering = core.CleanOrdering(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "position", Ascending: true}}
	}
	return svc.repo.QueryLessons(ctx, filter, ordering, page)
}

// ListPublished lists the published lessons by position.
func (svc *Service) ListPublished(ctx context.Context) ([]Lesson, error) {
	published := true
	lessons, _, err := svc.repo.QueryLessons(
		ctx,
		&QueryFilter{Published: &published},
		[]core.DBOrdering{{Field: "position", Ascending: true}, {Field: "created_at", Ascending: true}},
		core.Pagination{},
	)
	return lessons, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

// GetPublished hides unpublished lessons behind ErrNotFound.
func (svc *Service) GetPublished(ctx context.Context, id string) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if !l.Published {
		return Lesson{}, ErrNotFound
	}
	return l, nil
}

func (svc *Service) Update(ctx context.Context, l Lesson, el EditLesson) (Lesson, error) {
	l.Title = el.Title
	l.Summary = el.Summary
	l.Content = el.Content
	l.VideoURL = el.VideoURL
	l.Position = el.Position
	l.Published = el.Published
	l.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetLesson(ctx, id); err != nil {
		return err
	}
	if err := svc.repo.DeleteLesson(ctx, id); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	svc.invalidateDashboard(ctx)
	return nil
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountLessons(ctx)
}

func (svc *Service) invalidateDashboard(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyInstructorDashboard); err != nil {
		svc.logger.Warn("invalidating instructor dashboard cache", err)
	}
}
