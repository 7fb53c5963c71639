// Package testutil wires the services on in-memory storage and provides fixtures for the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/dashboard"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
	appfs "github.com/trezcool/hackcamp/fs"
	cachesvc "github.com/trezcool/hackcamp/services/cache"
	emailsvc "github.com/trezcool/hackcamp/services/email"
	exportsvc "github.com/trezcool/hackcamp/services/export"
	logsvc "github.com/trezcool/hackcamp/services/logger"
	inmemdb "github.com/trezcool/hackcamp/storage/database/inmem"
	"github.com/trezcool/hackcamp/storage/files"
)

// Env holds every service of the app, backed by in-memory repositories,
// a bbolt cache and local file storage living in the test's temp dir.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Mail       *emailsvc.ConsoleServiceMock
	Cache      core.Cache
	Files      *files.Local
	Hub        *chat.Hub

	UserRepo   user.Repository
	AppRepo    application.Repository
	CertRepo   certificate.Repository
	ChatRepo   chat.Repository
	LessonRepo lesson.Repository
	TaskRepo   task.Repository

	UserSvc      *user.Service
	AppSvc       *application.Service
	CertSvc      *certificate.Service
	ChatSvc      *chat.Service
	LessonSvc    *lesson.Service
	TaskSvc      *task.Service
	DashboardSvc *dashboard.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	return validate, translator
}

func Setup(t *testing.T) *Env {
	t.Helper()

	dir := t.TempDir()
	conf := core.NewTestConfig()
	conf.BoltPath = filepath.Join(dir, "cache.db")
	conf.Storage.LocalDir = filepath.Join(dir, "uploads")

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)
	user.LoadCommonPasswords(logger)

	cache, err := cachesvc.NewBolt(conf.BoltPath)
	if err != nil {
		t.Fatalf("NewBolt(): %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	store, err := files.NewLocal(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewLocal(): %v", err)
	}

	validate, translator := NewValidator()
	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	hub := chat.NewHub(conf, logger)

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Mail:       mailSvc,
		Cache:      cache,
		Files:      store,
		Hub:        hub,
		UserRepo:   inmemdb.NewUserRepository(db),
		AppRepo:    inmemdb.NewApplicationRepository(db),
		CertRepo:   inmemdb.NewCertificateRepository(db),
		ChatRepo:   inmemdb.NewChatRepository(db),
		LessonRepo: inmemdb.NewLessonRepository(db),
		TaskRepo:   inmemdb.NewTaskRepository(db),
	}
	env.UserSvc = user.NewService(conf, env.UserRepo, mailSvc, cache, logger)
	env.AppSvc = application.NewService(env.AppRepo, env.UserSvc, tx, mailSvc, cache, logger)
	env.CertSvc = certificate.NewService(conf, env.CertRepo, env.UserSvc, store, exportsvc.NewPDFRenderer(), mailSvc, cache, logger)
	env.ChatSvc = chat.NewService(env.ChatRepo, hub, cache, logger)
	env.LessonSvc = lesson.NewService(env.LessonRepo, cache, logger)
	env.TaskSvc = task.NewService(conf, env.TaskRepo, env.LessonSvc, env.UserSvc, tx, store, mailSvc, cache, logger)
	env.DashboardSvc = dashboard.NewService(
		conf, env.AppSvc, env.UserSvc, env.CertSvc, env.ChatSvc, env.LessonSvc, env.TaskSvc, cache, logger,
	)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateAdmin(t *testing.T, repo user.Repository) user.User {
	return CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
}

func CreateInstructor(t *testing.T, repo user.Repository) user.User {
	return CreateUser(t, repo, "Instructor", "instructor", "instructor@test.cd", "", []string{user.RoleInstructor}, true)
}

func CreateParticipant(t *testing.T, repo user.Repository, uname string) user.User {
	return CreateUser(t, repo, "Participant "+uname, uname, uname+"@test.cd", "", []string{user.RoleParticipant}, true)
}

func CreateApplication(t *testing.T, repo application.Repository, fullName, email string, status ...string) application.Application {
	t.Helper()

	st := application.StatusPending
	if len(status) > 0 {
		st = status[0]
	}
	now := time.Now().UTC()
	app, err := repo.CreateApplication(context.Background(), application.Application{
		FullName:   fullName,
		Email:      email,
		Track:      "backend",
		Motivation: "I want to learn",
		Status:     st,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateApplication(): %v", err)
	}
	return app
}

func CreateLesson(t *testing.T, repo lesson.Repository, title string, position int, published bool) lesson.Lesson {
	t.Helper()

	now := time.Now().UTC()
	l, err := repo.CreateLesson(context.Background(), lesson.Lesson{
		Title:     title,
		Position:  position,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateLesson(): %v", err)
	}
	return l
}

func CreateTask(t *testing.T, repo task.Repository, title, submissionType string, maxScore int, dueAt *time.Time) task.Task {
	t.Helper()

	now := time.Now().UTC()
	tk, err := repo.CreateTask(context.Background(), task.Task{
		Title:          title,
		SubmissionType: submissionType,
		MaxScore:       maxScore,
		DueAt:          dueAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateTask(): %v", err)
	}
	return tk
}

func CreateChannel(t *testing.T, repo chat.Repository, name string, readOnly bool) chat.Channel {
	t.Helper()

	now := time.Now().UTC()
	ch, err := repo.CreateChannel(context.Background(), chat.Channel{
		Name:      name,
		ReadOnly:  readOnly,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateChannel(): %v", err)
	}
	return ch
}

func CreateMessage(t *testing.T, repo chat.Repository, channelID string, author user.User, body string, createdAt time.Time) chat.Message {
	t.Helper()

	msg, err := repo.CreateMessage(context.Background(), chat.Message{
		ChannelID:  channelID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Body:       body,
		CreatedAt:  createdAt.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMessage(): %v", err)
	}
	return msg
}
