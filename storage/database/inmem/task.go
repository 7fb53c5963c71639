package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = uuid.New().String()
	put(ctx, repo.db.tasks, t.ID, t)
	return t, nil
}

func taskValue(t task.Task, field string) interface{} {
	switch field {
	case "title":
		return t.Title
	case "due_at":
		return t.DueAt
	default:
		return t.CreatedAt
	}
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.TaskFilter, ordering []core.DBOrdering, page core.Pagination) ([]task.Task, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tasks := make([]task.Task, 0, len(repo.db.tasks))
	for _, t := range repo.db.tasks {
		if filter != nil {
			if filter.LessonID != "" && t.LessonID != filter.LessonID {
				continue
			}
			if filter.Search != "" && !matches(filter.Search, t.Title, t.Description) {
				continue
			}
		}
		tasks = append(tasks, t)
	}

	sortItems(tasks, ordering, taskValue, func(a, b task.Task) bool { return a.ID < b.ID })
	return paginate(tasks, page), len(tasks), nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	put(ctx, repo.db.tasks, t.ID, t)
	return t, nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return task.ErrNotFound
	}
	remove(ctx, repo.db.tasks, id)
	for sid, s := range repo.db.submissions {
		if s.TaskID == id {
			remove(ctx, repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *taskRepository) CountTasks(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.tasks), nil
}

// resolve fills the read-only fields of a submission. The caller holds the lock.
func (repo *taskRepository) resolve(s task.Submission) task.Submission {
	s.TaskTitle = repo.db.tasks[s.TaskID].Title
	s.UserName = repo.db.users[s.UserID].Name
	return s
}

func (repo *taskRepository) CreateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[s.TaskID]; !ok {
		return task.Submission{}, task.ErrNotFound
	}
	for _, other := range repo.db.submissions {
		if other.TaskID == s.TaskID && other.UserID == s.UserID {
			return task.Submission{}, task.ErrAlreadySubmitted
		}
	}
	s.ID = uuid.New().String()
	s.TaskTitle, s.UserName = "", ""
	put(ctx, repo.db.submissions, s.ID, s)
	return repo.resolve(s), nil
}

func submissionValue(s task.Submission, field string) interface{} {
	switch field {
	case "evaluated_at":
		return s.EvaluatedAt
	case "status":
		return s.Status
	case "score":
		return s.Score
	default:
		return s.SubmittedAt
	}
}

func (repo *taskRepository) QuerySubmissions(ctx context.Context, filter *task.SubmissionFilter, ordering []core.DBOrdering, page core.Pagination) ([]task.Submission, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]task.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter != nil {
			if filter.TaskID != "" && s.TaskID != filter.TaskID {
				continue
			}
			if filter.UserID != "" && s.UserID != filter.UserID {
				continue
			}
			if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, s.Status) {
				continue
			}
			if filter.Late != nil && s.Late != *filter.Late {
				continue
			}
		}
		subs = append(subs, repo.resolve(s))
	}

	sortItems(subs, ordering, submissionValue, func(a, b task.Submission) bool { return a.ID < b.ID })
	return paginate(subs, page), len(subs), nil
}

func (repo *taskRepository) GetSubmission(ctx context.Context, id string) (task.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return repo.resolve(s), nil
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) GetUserSubmission(ctx context.Context, taskID, userID string) (task.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.submissions {
		if s.TaskID == taskID && s.UserID == userID {
			return repo.resolve(s), nil
		}
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[s.ID]; !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	s.TaskTitle, s.UserName = "", ""
	put(ctx, repo.db.submissions, s.ID, s)
	return repo.resolve(s), nil
}

func (repo *taskRepository) CountSubmissionsByStatus(ctx context.Context) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, s := range repo.db.submissions {
		counts[s.Status]++
	}
	return counts, nil
}

func (repo *taskRepository) TaskStats(ctx context.Context) ([]task.TaskStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byTask := make(map[string]*task.TaskStats, len(repo.db.tasks))
	scoreSums := make(map[string]int, len(repo.db.tasks))
	for _, t := range repo.db.tasks {
		byTask[t.ID] = &task.TaskStats{TaskID: t.ID, Title: t.Title}
	}
	for _, s := range repo.db.submissions {
		st, ok := byTask[s.TaskID]
		if !ok {
			continue
		}
		st.Submissions++
		if s.IsAccepted() {
			st.Accepted++
			if s.Score != nil {
				scoreSums[s.TaskID] += *s.Score
			}
		}
	}

	stats := make([]task.TaskStats, 0, len(byTask))
	for id, st := range byTask {
		if st.Accepted > 0 {
			avg := float64(scoreSums[id]) / float64(st.Accepted)
			st.AverageScore = &avg
		}
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Title != stats[j].Title {
			return stats[i].Title < stats[j].Title
		}
		return stats[i].TaskID < stats[j].TaskID
	})
	return stats, nil
}
