package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/lesson"
)

const lessonColumns = `id, title, summary, content, video_url, position, published, created_by, created_at, updated_at`

type lessonRow struct {
	ID        string      `db:"id"`
	Title     string      `db:"title"`
	Summary   string      `db:"summary"`
	Content   string      `db:"content"`
	VideoURL  string      `db:"video_url"`
	Position  int         `db:"position"`
	Published bool        `db:"published"`
	CreatedBy null.String `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toLessonRow(l lesson.Lesson) lessonRow {
	return lessonRow{
		ID:        l.ID,
		Title:     l.Title,
		Summary:   l.Summary,
		Content:   l.Content,
		VideoURL:  l.VideoURL,
		Position:  l.Position,
		Published: l.Published,
		CreatedBy: null.NewString(l.CreatedBy, l.CreatedBy != ""),
		CreatedAt: l.CreatedAt.UTC(),
		UpdatedAt: l.UpdatedAt.UTC(),
	}
}

func (r lessonRow) lesson() lesson.Lesson {
	return lesson.Lesson{
		ID:        r.ID,
		Title:     r.Title,
		Summary:   r.Summary,
		Content:   r.Content,
		VideoURL:  r.VideoURL,
		Position:  r.Position,
		Published: r.Published,
		CreatedBy: r.CreatedBy.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type lessonRepository struct {
	base
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sqlx.DB) lesson.Repository {
	return &lessonRepository{base{db: db}}
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson) (lesson.Lesson, error) {
	l.ID = newID()
	q := `INSERT INTO lessons (` + lessonColumns + `) VALUES (
		:id, :title, :summary, :content, :video_url, :position, :published, :created_by, :created_at, :updated_at)`
	if _, err := repo.namedExec(ctx, q, toLessonRow(l)); err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo *lessonRepository) QueryLessons(ctx context.Context, filter *lesson.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]lesson.Lesson, int, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "title", "summary")
		if filter.Published != nil {
			w.add("published = ?", *filter.Published)
		}
	}

	total, err := repo.count(ctx, "lessons", w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting lessons")
	}

	q := "SELECT " + lessonColumns + " FROM lessons" + w.String() + orderBy(ordering, "", "id ASC") + limitOffset(page)
	var rows []lessonRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting lessons")
	}

	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.lesson())
	}
	return lessons, total, nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, id string) (lesson.Lesson, error) {
	if !validID(id) {
		return lesson.Lesson{}, lesson.ErrNotFound
	}

	var r lessonRow
	if err := repo.get(ctx, &r, "SELECT "+lessonColumns+" FROM lessons WHERE id = ?", id); err != nil {
		return lesson.Lesson{}, trapNoRows(err, lesson.ErrNotFound, "selecting lesson")
	}
	return r.lesson(), nil
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson) (lesson.Lesson, error) {
	q := `UPDATE lessons SET
		title = :title, summary = :summary, content = :content, video_url = :video_url,
		position = :position, published = :published, updated_at = :updated_at
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toLessonRow(l))
	if err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n == 0 {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return l, nil
}

// DeleteLesson relies on ON DELETE SET NULL to detach the lesson's tasks.
func (repo *lessonRepository) DeleteLesson(ctx context.Context, id string) error {
	if !validID(id) {
		return lesson.ErrNotFound
	}
	n, err := repo.exec(ctx, "DELETE FROM lessons WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	if n == 0 {
		return lesson.ErrNotFound
	}
	return nil
}

func (repo *lessonRepository) CountLessons(ctx context.Context) (int, error) {
	n, err := repo.count(ctx, "lessons", where{})
	return n, errors.Wrap(err, "counting lessons")
}
