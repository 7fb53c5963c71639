package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/hackcamp/apps/api/echo"
	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/dashboard"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
	cachesvc "github.com/trezcool/hackcamp/services/cache"
	emailsvc "github.com/trezcool/hackcamp/services/email"
	exportsvc "github.com/trezcool/hackcamp/services/export"
	logsvc "github.com/trezcool/hackcamp/services/logger"
	"github.com/trezcool/hackcamp/storage/database"
	inmemdb "github.com/trezcool/hackcamp/storage/database/inmem"
	sqlxrepos "github.com/trezcool/hackcamp/storage/database/sqlx"
	"github.com/trezcool/hackcamp/storage/files"
)

// Options select the backends wired by New.
type Options struct {
	// InMemory swaps PostgreSQL for in-memory repositories and Redis for a bbolt cache.
	InMemory bool
}

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are provided together since they share a backend.
type Repositories struct {
	dig.Out

	Tx         core.Transactor
	UserRepo   user.Repository
	AppRepo    application.Repository
	CertRepo   certificate.Repository
	ChatRepo   chat.Repository
	LessonRepo lesson.Repository
	TaskRepo   task.Repository
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	Cache        core.Cache
	Files        core.FileStorage
	Hub          *chat.Hub
	UserSvc      user.ServiceInterface
	AppSvc       application.ServiceInterface
	CertSvc      certificate.ServiceInterface
	ChatSvc      chat.ServiceInterface
	LessonSvc    lesson.ServiceInterface
	TaskSvc      task.ServiceInterface
	DashboardSvc dashboard.ServiceInterface
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newSQLRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Tx:         sqlxrepos.NewTransactor(db),
		UserRepo:   sqlxrepos.NewUserRepository(db),
		AppRepo:    sqlxrepos.NewApplicationRepository(db),
		CertRepo:   sqlxrepos.NewCertificateRepository(db),
		ChatRepo:   sqlxrepos.NewChatRepository(db),
		LessonRepo: sqlxrepos.NewLessonRepository(db),
		TaskRepo:   sqlxrepos.NewTaskRepository(db),
	}
}

func newInMemRepositories() Repositories {
	db := inmemdb.Open()
	return Repositories{
		Tx:         inmemdb.NewTransactor(db),
		UserRepo:   inmemdb.NewUserRepository(db),
		AppRepo:    inmemdb.NewApplicationRepository(db),
		CertRepo:   inmemdb.NewCertificateRepository(db),
		ChatRepo:   inmemdb.NewChatRepository(db),
		LessonRepo: inmemdb.NewLessonRepository(db),
		TaskRepo:   inmemdb.NewTaskRepository(db),
	}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	return validate, translator
}

func newFileStorage(conf *core.Config) (core.FileStorage, error) {
	return files.New(context.Background(), conf)
}

func newPDFRenderer() certificate.PDFRenderer {
	return exportsvc.NewPDFRenderer()
}

func newBroadcaster(hub *chat.Hub) chat.Broadcaster {
	return hub
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Cache:        p.Cache,
		Files:        p.Files,
		Hub:          p.Hub,
		UserSvc:      p.UserSvc,
		AppSvc:       p.AppSvc,
		CertSvc:      p.CertSvc,
		ChatSvc:      p.ChatSvc,
		LessonSvc:    p.LessonSvc,
		TaskSvc:      p.TaskSvc,
		DashboardSvc: p.DashboardSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(opts Options) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))

	if opts.InMemory {
		must(c.Provide(newInMemRepositories))
		must(c.Provide(func(conf *core.Config) (core.Cache, error) {
			return cachesvc.NewBolt(conf.BoltPath)
		}))
	} else {
		must(c.Provide(newDB))
		must(c.Provide(newSQLRepositories))
		must(c.Provide(cachesvc.New))
	}

	must(c.Provide(emailsvc.New))
	must(c.Provide(newFileStorage))
	must(c.Provide(newPDFRenderer))
	must(c.Provide(newValidator))
	must(c.Provide(chat.NewHub))
	must(c.Provide(newBroadcaster))

	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(application.NewService, dig.As(new(application.ServiceInterface))))
	must(c.Provide(certificate.NewService, dig.As(new(certificate.ServiceInterface))))
	must(c.Provide(chat.NewService, dig.As(new(chat.ServiceInterface))))
	must(c.Provide(lesson.NewService, dig.As(new(lesson.ServiceInterface))))
	must(c.Provide(task.NewService, dig.As(new(task.ServiceInterface))))
	must(c.Provide(dashboard.NewService, dig.As(new(dashboard.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container, w io.Writer) error {
	return dig.Visualize(c, w)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
