package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/lesson"
)

type lessonRepository struct {
	db *DB
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) lesson.Repository {
	return &lessonRepository{db: db}
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson) (lesson.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = uuid.New().String()
	put(ctx, repo.db.lessons, l.ID, l)
	return l, nil
}

func lessonValue(l lesson.Lesson, field string) interface{} {
	switch field {
	case "position":
		return l.Position
	case "title":
		return l.Title
	default:
		return l.CreatedAt
	}
}

func (repo *lessonRepository) QueryLessons(ctx context.Context, filter *lesson.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]lesson.Lesson, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]lesson.Lesson, 0, len(repo.db.lessons))
	for _, l := range repo.db.lessons {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, l.Title, l.Summary) {
				continue
			}
			if filter.Published != nil && l.Published != *filter.Published {
				continue
			}
		}
		lessons = append(lessons, l)
	}

	sortItems(lessons, ordering, lessonValue, func(a, b lesson.Lesson) bool { return a.ID < b.ID })
	return paginate(lessons, page), len(lessons), nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, id string) (lesson.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if l, ok := repo.db.lessons[id]; ok {
		return l, nil
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson) (lesson.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[l.ID]; !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	put(ctx, repo.db.lessons, l.ID, l)
	return l, nil
}

func (repo *lessonRepository) DeleteLesson(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return lesson.ErrNotFound
	}
	remove(ctx, repo.db.lessons, id)
	for tid, t := range repo.db.tasks {
		if t.LessonID == id {
			t.LessonID = ""
			put(ctx, repo.db.tasks, tid, t)
		}
	}
	return nil
}

func (repo *lessonRepository) CountLessons(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.lessons), nil
}
