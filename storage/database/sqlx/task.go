package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/task"
)

const (
	taskColumns = `id, lesson_id, title, description, submission_type, max_score, due_at, created_by, created_at, updated_at`

	submissionColumns = `id, task_id, user_id, link_url, file_key, file_url, comment, status, score, feedback,
		evaluated_by, submitted_at, evaluated_at, late`

	// submissions joined with their task title and user name
	submissionSelect = `SELECT s.id, s.task_id, s.user_id, s.link_url, s.file_key, s.file_url, s.comment, s.status,
		s.score, s.feedback, s.evaluated_by, s.submitted_at, s.evaluated_at, s.late,
		t.title AS task_title, u.name AS user_name
		FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		JOIN users u ON u.id = s.user_id`
)

type taskRow struct {
	ID             string      `db:"id"`
	LessonID       null.String `db:"lesson_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	SubmissionType string      `db:"submission_type"`
	MaxScore       int         `db:"max_score"`
	DueAt          null.Time   `db:"due_at"`
	CreatedBy      null.String `db:"created_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toTaskRow(t task.Task) taskRow {
	return taskRow{
		ID:             t.ID,
		LessonID:       null.NewString(t.LessonID, t.LessonID != ""),
		Title:          t.Title,
		Description:    t.Description,
		SubmissionType: t.SubmissionType,
		MaxScore:       t.MaxScore,
		DueAt:          null.TimeFromPtr(t.DueAt),
		CreatedBy:      null.NewString(t.CreatedBy, t.CreatedBy != ""),
		CreatedAt:      t.CreatedAt.UTC(),
		UpdatedAt:      t.UpdatedAt.UTC(),
	}
}

func (r taskRow) task() task.Task {
	t := task.Task{
		ID:             r.ID,
		LessonID:       r.LessonID.String,
		Title:          r.Title,
		Description:    r.Description,
		SubmissionType: r.SubmissionType,
		MaxScore:       r.MaxScore,
		CreatedBy:      r.CreatedBy.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.DueAt.Valid {
		due := r.DueAt.Time.UTC()
		t.DueAt = &due
	}
	return t
}

type submissionRow struct {
	ID          string      `db:"id"`
	TaskID      string      `db:"task_id"`
	UserID      string      `db:"user_id"`
	LinkURL     string      `db:"link_url"`
	FileKey     string      `db:"file_key"`
	FileURL     string      `db:"file_url"`
	Comment     string      `db:"comment"`
	Status      string      `db:"status"`
	Score       null.Int    `db:"score"`
	Feedback    string      `db:"feedback"`
	EvaluatedBy null.String `db:"evaluated_by"`
	SubmittedAt time.Time   `db:"submitted_at"`
	EvaluatedAt null.Time   `db:"evaluated_at"`
	Late        bool        `db:"late"`

	TaskTitle string `db:"task_title"`
	UserName  string `db:"user_name"`
}

func toSubmissionRow(s task.Submission) submissionRow {
	row := submissionRow{
		ID:          s.ID,
		TaskID:      s.TaskID,
		UserID:      s.UserID,
		LinkURL:     s.LinkURL,
		FileKey:     s.FileKey,
		FileURL:     s.FileURL,
		Comment:     s.Comment,
		Status:      s.Status,
		Feedback:    s.Feedback,
		EvaluatedBy: null.NewString(s.EvaluatedBy, s.EvaluatedBy != ""),
		SubmittedAt: s.SubmittedAt.UTC(),
		EvaluatedAt: null.TimeFromPtr(s.EvaluatedAt),
		Late:        s.Late,
	}
	if s.Score != nil {
		row.Score = null.IntFrom(*s.Score)
	}
	return row
}

func (r submissionRow) submission() task.Submission {
	s := task.Submission{
		ID:          r.ID,
		TaskID:      r.TaskID,
		UserID:      r.UserID,
		LinkURL:     r.LinkURL,
		FileKey:     r.FileKey,
		FileURL:     r.FileURL,
		Comment:     r.Comment,
		Status:      r.Status,
		Score:       r.Score.Ptr(),
		Feedback:    r.Feedback,
		EvaluatedBy: r.EvaluatedBy.String,
		SubmittedAt: r.SubmittedAt.UTC(),
		Late:        r.Late,
		TaskTitle:   r.TaskTitle,
		UserName:    r.UserName,
	}
	if r.EvaluatedAt.Valid {
		at := r.EvaluatedAt.Time.UTC()
		s.EvaluatedAt = &at
	}
	return s
}

type taskRepository struct {
	base
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{base{db: db}}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = newID()
	q := `INSERT INTO tasks (` + taskColumns + `) VALUES (
		:id, :lesson_id, :title, :description, :submission_type, :max_score, :due_at, :created_by, :created_at, :updated_at)`
	if _, err := repo.namedExec(ctx, q, toTaskRow(t)); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.TaskFilter, ordering []core.DBOrdering, page core.Pagination) ([]task.Task, int, error) {
	var w where
	if filter != nil {
		if filter.LessonID != "" {
			if !validID(filter.LessonID) {
				return []task.Task{}, 0, nil
			}
			w.add("lesson_id = ?", filter.LessonID)
		}
		w.search(filter.Search, "title", "description")
	}

	total, err := repo.count(ctx, "tasks", w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting tasks")
	}

	q := "SELECT " + taskColumns + " FROM tasks" + w.String() + orderBy(ordering, "", "id ASC") + limitOffset(page)
	var rows []taskRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting tasks")
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, total, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	if !validID(id) {
		return task.Task{}, task.ErrNotFound
	}

	var r taskRow
	if err := repo.get(ctx, &r, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id); err != nil {
		return task.Task{}, trapNoRows(err, task.ErrNotFound, "selecting task")
	}
	return r.task(), nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `UPDATE tasks SET
		lesson_id = :lesson_id, title = :title, description = :description, submission_type = :submission_type,
		max_score = :max_score, due_at = :due_at, updated_at = :updated_at
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toTaskRow(t))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

// DeleteTask relies on ON DELETE CASCADE for the task's submissions.
func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	if !validID(id) {
		return task.ErrNotFound
	}
	n, err := repo.exec(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (repo *taskRepository) CountTasks(ctx context.Context) (int, error) {
	n, err := repo.count(ctx, "tasks", where{})
	return n, errors.Wrap(err, "counting tasks")
}

func (repo *taskRepository) getSubmission(ctx context.Context, w where) (task.Submission, error) {
	var lock string
	if repo.inTx(ctx) {
		lock = " FOR UPDATE OF s"
	}

	var r submissionRow
	if err := repo.get(ctx, &r, submissionSelect+w.String()+lock, w.args...); err != nil {
		return task.Submission{}, trapNoRows(err, task.ErrSubmissionNotFound, "selecting submission")
	}
	return r.submission(), nil
}

func mapSubmissionConflict(err error) error {
	if _, ok := uniqueViolation(err); ok {
		return task.ErrAlreadySubmitted
	}
	if foreignKeyViolation(err) {
		return task.ErrNotFound
	}
	return err
}

func (repo *taskRepository) CreateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	s.ID = newID()
	q := `INSERT INTO submissions (` + submissionColumns + `) VALUES (
		:id, :task_id, :user_id, :link_url, :file_key, :file_url, :comment, :status, :score, :feedback,
		:evaluated_by, :submitted_at, :evaluated_at, :late)`
	if _, err := repo.namedExec(ctx, q, toSubmissionRow(s)); err != nil {
		return task.Submission{}, errors.Wrap(mapSubmissionConflict(err), "inserting submission")
	}

	var w where
	w.add("s.id = ?", s.ID)
	return repo.getSubmission(ctx, w)
}

func (repo *taskRepository) QuerySubmissions(ctx context.Context, filter *task.SubmissionFilter, ordering []core.DBOrdering, page core.Pagination) ([]task.Submission, int, error) {
	var w where
	if filter != nil {
		if filter.TaskID != "" {
			if !validID(filter.TaskID) {
				return []task.Submission{}, 0, nil
			}
			w.add("s.task_id = ?", filter.TaskID)
		}
		if filter.UserID != "" {
			if !validID(filter.UserID) {
				return []task.Submission{}, 0, nil
			}
			w.add("s.user_id = ?", filter.UserID)
		}
		if len(filter.Statuses) > 0 {
			w.add("s.status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Late != nil {
			w.add("s.late = ?", *filter.Late)
		}
	}

	total, err := repo.count(ctx, "submissions s", w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting submissions")
	}

	q := submissionSelect + w.String() + orderBy(ordering, "s.", "s.id ASC") + limitOffset(page)
	var rows []submissionRow
	if err := repo.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting submissions")
	}

	subs := make([]task.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, total, nil
}

func (repo *taskRepository) GetSubmission(ctx context.Context, id string) (task.Submission, error) {
	if !validID(id) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	var w where
	w.add("s.id = ?", id)
	return repo.getSubmission(ctx, w)
}

func (repo *taskRepository) GetUserSubmission(ctx context.Context, taskID, userID string) (task.Submission, error) {
	if !validID(taskID) || !validID(userID) {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	var w where
	w.add("s.task_id = ?", taskID)
	w.add("s.user_id = ?", userID)
	return repo.getSubmission(ctx, w)
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	q := `UPDATE submissions SET
		link_url = :link_url, file_key = :file_key, file_url = :file_url, comment = :comment, status = :status,
		score = :score, feedback = :feedback, evaluated_by = :evaluated_by, submitted_at = :submitted_at,
		evaluated_at = :evaluated_at, late = :late
		WHERE id = :id`
	n, err := repo.namedExec(ctx, q, toSubmissionRow(s))
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n == 0 {
		return task.Submission{}, task.ErrSubmissionNotFound
	}

	var w where
	w.add("s.id = ?", s.ID)
	return repo.getSubmission(ctx, w)
}

func (repo *taskRepository) CountSubmissionsByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := repo.selectAll(ctx, &rows, "SELECT status, COUNT(*) AS count FROM submissions GROUP BY status"); err != nil {
		return nil, errors.Wrap(err, "counting submissions by status")
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (repo *taskRepository) TaskStats(ctx context.Context) ([]task.TaskStats, error) {
	var rows []struct {
		TaskID       string       `db:"task_id"`
		Title        string       `db:"title"`
		Submissions  int          `db:"submissions"`
		Accepted     int          `db:"accepted"`
		AverageScore null.Float64 `db:"average_score"`
	}
	q := `SELECT t.id AS task_id, t.title,
			COUNT(s.id) AS submissions,
			COUNT(s.id) FILTER (WHERE s.status = ?) AS accepted,
			(AVG(COALESCE(s.score, 0)) FILTER (WHERE s.status = ?))::float8 AS average_score
		FROM tasks t
		LEFT JOIN submissions s ON s.task_id = t.id
		GROUP BY t.id, t.title
		ORDER BY t.title ASC, t.id ASC`
	if err := repo.selectAll(ctx, &rows, q, task.StatusAccepted, task.StatusAccepted); err != nil {
		return nil, errors.Wrap(err, "selecting task stats")
	}

	stats := make([]task.TaskStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, task.TaskStats{
			TaskID:       r.TaskID,
			Title:        r.Title,
			Submissions:  r.Submissions,
			Accepted:     r.Accepted,
			AverageScore: r.AverageScore.Ptr(),
		})
	}
	return stats, nil
}
