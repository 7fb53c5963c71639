package task

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("task not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrAlreadyAccepted    = core.NewStateError("submission already accepted")
	ErrAlreadySubmitted   = core.NewStateError("submission already exists")
	ErrNoFile             = core.NewNotFoundError("submission has no file")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		// QueryTasks returns the requested page and the total count of matching tasks.
		// TaskFilter.Search does a case-insensitive match on one of Title or Description.
		QueryTasks(ctx context.Context, filter *TaskFilter, ordering []core.DBOrdering, page core.Pagination) ([]Task, int, error)
		GetTask(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		// DeleteTask deletes the task and its submissions.
		DeleteTask(ctx context.Context, id string) error
		CountTasks(ctx context.Context) (int, error)

		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		// QuerySubmissions returns the requested page and the total count of matching submissions.
		QuerySubmissions(ctx context.Context, filter *SubmissionFilter, ordering []core.DBOrdering, page core.Pagination) ([]Submission, int, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// GetUserSubmission locks the submission for update when ctx carries a transaction.
		GetUserSubmission(ctx context.Context, taskID, userID string) (Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		CountSubmissionsByStatus(ctx context.Context) (map[string]int, error)
		TaskStats(ctx context.Context) ([]TaskStats, error)
	}

	ServiceInterface interface {
		CreateTask(ctx context.Context, et EditTask, author user.User) (Task, error)
		QueryTasks(ctx context.Context, filter *TaskFilter, ordering []core.DBOrdering, page core.Pagination) ([]Task, int, error)
		GetTask(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, t Task, et EditTask) (Task, error)
		DeleteTask(ctx context.Context, id string) error
		CountTasks(ctx context.Context) (int, error)

		// Submit creates or replaces the user's submission for the task. up may be nil.
		Submit(ctx context.Context, taskID string, usr user.User, ns NewSubmission, up *core.Upload) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *SubmissionFilter, ordering []core.DBOrdering, page core.Pagination) ([]Submission, int, error)
		ListUserSubmissions(ctx context.Context, usr user.User) ([]Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// GetSubmissionFor returns the submission if usr may see it.
		GetSubmissionFor(ctx context.Context, id string, usr user.User) (Submission, error)
		Evaluate(ctx context.Context, s Submission, ev Evaluation, evaluator user.User) (Submission, error)
		OpenFile(ctx context.Context, s Submission) (io.ReadCloser, error)
		CountSubmissionsByStatus(ctx context.Context) (map[string]int, error)
		TaskStats(ctx context.Context) ([]TaskStats, error)
	}

	Service struct {
		conf      *core.Config
		repo      Repository
		lessonSvc lesson.ServiceInterface
		usrSvc    user.ServiceInterface
		tx        core.Transactor
		files     core.FileStorage
		mailSvc   core.EmailService
		cache     core.Cache
		logger    core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	repo Repository,
	lessonSvc lesson.ServiceInterface,
	usrSvc user.ServiceInterface,
	tx core.Transactor,
	files core.FileStorage,
	mailSvc core.EmailService,
	cache core.Cache,
	logger core.Logger,
) *Service {
	return &Service{
		conf:      conf,
		repo:      repo,
		lessonSvc: lessonSvc,
		usrSvc:    usrSvc,
		tx:        tx,
		files:     files,
		mailSvc:   mailSvc,
		cache:     cache,
		logger:    logger,
	}
}

func (svc *Service) checkLesson(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := svc.lessonSvc.GetByID(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "lesson_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding lesson")
	}
	return nil
}

func (svc *Service) CreateTask(ctx context.Context, et EditTask, author user.User) (Task, error) {
	if err := svc.checkLesson(ctx, et.LessonID); err != nil {
		return Task{}, err
	}
	now := time.Now().UTC()
	t, err := svc.repo.CreateTask(ctx, Task{
		LessonID:       et.LessonID,
		Title:          et.Title,
		Description:    et.Description,
		SubmissionType: et.SubmissionType,
		MaxScore:       et.MaxScore,
		DueAt:          et.DueAt,
		CreatedBy:      author.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	svc.invalidateDashboard(ctx)
	return t, nil
}

func (svc *Service) QueryTasks(ctx context.Context, filter *TaskFilter, ordering []core.DBOrdering, page core.Pagination) ([]Task, int, error) {
	ordering = core.CleanOrdering(ordering, TaskOrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	return svc.repo.QueryTasks(ctx, filter, ordering, page)
}

func (svc *Service) GetTask(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTask(ctx, id)
}

func (svc *Service) UpdateTask(ctx context.Context, t Task, et EditTask) (Task, error) {
	if err := svc.checkLesson(ctx, et.LessonID); err != nil {
		return Task{}, err
	}
	t.LessonID = et.LessonID
	t.Title = et.Title
	t.Description = et.Description
	t.SubmissionType = et.SubmissionType
	t.MaxScore = et.MaxScore
	t.DueAt = et.DueAt
	t.UpdatedAt = time.Now().UTC()
	t, err := svc.repo.UpdateTask(ctx, t)
	if err != nil {
		return Task{}, err
	}
	svc.invalidateDashboard(ctx)
	return t, nil
}

// DeleteTask deletes the task, its submissions and their files.
func (svc *Service) DeleteTask(ctx context.Context, id string) error {
	if _, err := svc.repo.GetTask(ctx, id); err != nil {
		return err
	}
	subs, _, err := svc.repo.QuerySubmissions(ctx, &SubmissionFilter{TaskID: id}, nil, core.Pagination{})
	if err != nil {
		return errors.Wrap(err, "querying task submissions")
	}
	if err = svc.repo.DeleteTask(ctx, id); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	svc.invalidateDashboard(ctx)

	var result *multierror.Error
	for _, s := range subs {
		if s.FileKey == "" {
			continue
		}
		if err := svc.files.Delete(ctx, s.FileKey); err != nil && err != core.ErrFileNotFound {
			result = multierror.Append(result, errors.Wrap(err, s.FileKey))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		svc.logger.Warn("deleting submission files of task "+id, err)
	}
	return nil
}

func (svc *Service) CountTasks(ctx context.Context) (int, error) {
	return svc.repo.CountTasks(ctx)
}

// checkContent makes sure the submitted content matches the task's submission type.
func checkContent(t Task, ns NewSubmission, up *core.Upload) error {
	hasLink, hasFile := ns.LinkURL != "", up != nil
	switch t.SubmissionType {
	case TypeLink:
		if hasFile {
			return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this task expects a link"})
		}
		if !hasLink {
			return core.NewValidationError(nil, core.FieldError{Field: "link_url", Error: "this field is required"})
		}
	case TypeFile:
		if hasLink {
			return core.NewValidationError(nil, core.FieldError{Field: "link_url", Error: "this task expects a file"})
		}
		if !hasFile {
			return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
		}
	default:
		if !hasLink && !hasFile {
			return core.NewValidationError(nil, core.FieldError{Field: "link_url", Error: "a link or a file is required"})
		}
	}
	return nil
}

func (svc *Service) Submit(ctx context.Context, taskID string, usr user.User, ns NewSubmission, up *core.Upload) (Submission, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Submission{}, err
	}
	if err = checkContent(t, ns, up); err != nil {
		return Submission{}, err
	}

	var stored core.StoredFile
	if up != nil {
		ct, err := up.Check("file", svc.conf.Storage.MaxUploadSize, FileTypes...)
		if err != nil {
			return Submission{}, err
		}
		key := fmt.Sprintf("submissions/%s/%s/%s%s", t.ID, usr.ID, uuid.New().String(), core.ExtensionFor(ct))
		if stored, err = svc.files.Save(ctx, key, up.Reader, ct); err != nil {
			return Submission{}, errors.Wrap(err, "saving submission file")
		}
	}

	var sub Submission
	var oldKey string
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.GetUserSubmission(ctx, t.ID, usr.ID)
		if err != nil && errors.Cause(err) != ErrSubmissionNotFound {
			return errors.Wrap(err, "finding submission")
		}
		if err == nil && existing.IsAccepted() {
			return ErrAlreadyAccepted
		}

		now := time.Now().UTC()
		sub = existing
		oldKey = existing.FileKey
		sub.TaskID = t.ID
		sub.UserID = usr.ID
		sub.LinkURL = ns.LinkURL
		sub.FileKey = stored.Key
		sub.FileURL = stored.URL
		sub.Comment = ns.Comment
		sub.Status = StatusSubmitted
		sub.Score = nil
		sub.Feedback = ""
		sub.EvaluatedBy = ""
		sub.EvaluatedAt = nil
		sub.SubmittedAt = now
		sub.Late = t.IsLate(now)

		if sub.ID == "" {
			sub, err = svc.repo.CreateSubmission(ctx, sub)
			return errors.Wrap(err, "creating submission")
		}
		sub, err = svc.repo.UpdateSubmission(ctx, sub)
		return errors.Wrap(err, "updating submission")
	})
	if err != nil {
		svc.removeFile(ctx, stored.Key)
		return Submission{}, err
	}
	svc.removeFile(ctx, oldKey)
	svc.invalidateDashboard(ctx)
	return sub, nil
}

func (svc *Service) QuerySubmissions(ctx context.Context, filter *SubmissionFilter, ordering []core.DBOrdering, page core.Pagination) ([]Submission, int, error) {
	ordering = core.CleanOrdering(ordering, SubmissionOrderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "submitted_at"}}
	}
	return svc.repo.QuerySubmissions(ctx, filter, ordering, page)
}

func (svc *Service) ListUserSubmissions(ctx context.Context, usr user.User) ([]Submission, error) {
	subs, _, err := svc.repo.QuerySubmissions(
		ctx,
		&SubmissionFilter{UserID: usr.ID},
		[]core.DBOrdering{{Field: "submitted_at"}},
		core.Pagination{},
	)
	return subs, err
}

func (svc *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *Service) GetSubmissionFor(ctx context.Context, id string, usr user.User) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.UserID != usr.ID && !usr.IsStaff() {
		return Submission{}, core.ErrPermissionDenied
	}
	return sub, nil
}

type evaluatedData struct {
	Name      string
	TaskTitle string
	Status    string
	Accepted  bool
	Score     int
	MaxScore  int
	Feedback  string
}

// Evaluate accepts or rejects a submission. Evaluations may be revised.
func (svc *Service) Evaluate(ctx context.Context, s Submission, ev Evaluation, evaluator user.User) (Submission, error) {
	t, err := svc.repo.GetTask(ctx, s.TaskID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding task")
	}

	now := time.Now().UTC()
	s.Status = ev.Status
	s.Score = ev.Score
	s.Feedback = ev.Feedback
	s.EvaluatedBy = evaluator.ID
	s.EvaluatedAt = &now
	if s, err = svc.repo.UpdateSubmission(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	svc.invalidateDashboard(ctx)

	participant, err := svc.usrSvc.GetByID(ctx, s.UserID)
	if err != nil {
		svc.logger.Warn("finding evaluated participant "+s.UserID, err)
		return s, nil
	}
	data := evaluatedData{
		Name:      participant.Name,
		TaskTitle: t.Title,
		Status:    s.Status,
		Accepted:  s.IsAccepted(),
		MaxScore:  t.MaxScore,
		Feedback:  s.Feedback,
	}
	if s.Score != nil {
		data.Score = *s.Score
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: participant.Name, Address: participant.Email}},
		Subject:      "Your submission has been evaluated",
		TemplateName: "submission_evaluated",
		TemplateData: data,
	})
	return s, nil
}

func (svc *Service) OpenFile(ctx context.Context, s Submission) (io.ReadCloser, error) {
	if s.FileKey == "" {
		return nil, ErrNoFile
	}
	rc, err := svc.files.Open(ctx, s.FileKey)
	if err == core.ErrFileNotFound {
		return nil, ErrNoFile
	}
	return rc, err
}

func (svc *Service) CountSubmissionsByStatus(ctx context.Context) (map[string]int, error) {
	return svc.repo.CountSubmissionsByStatus(ctx)
}

func (svc *Service) TaskStats(ctx context.Context) ([]TaskStats, error) {
	return svc.repo.TaskStats(ctx)
}

func (svc *Service) removeFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := svc.files.Delete(ctx, key); err != nil && err != core.ErrFileNotFound {
		svc.logger.Warn("deleting submission file "+key, err)
	}
}

func (svc *Service) invalidateDashboard(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, core.CacheKeyInstructorDashboard); err != nil {
		svc.logger.Warn("invalidating instructor dashboard cache", err)
	}
}
