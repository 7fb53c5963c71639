package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
	emailsvc "github.com/trezcool/hackcamp/services/email"
	logsvc "github.com/trezcool/hackcamp/services/logger"
	"github.com/trezcool/hackcamp/storage/database"
	sqlxrepos "github.com/trezcool/hackcamp/storage/database/sqlx"
	"github.com/trezcool/hackcamp/storage/files"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		errAndDie(database.CreateIfNotExist(conf))
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	store, err := files.New(context.Background(), conf)
	errAndDie(err)

	// set up services; the dashboards' cache entries expire on their own
	user.LoadCommonPasswords(logger)
	tx := sqlxrepos.NewTransactor(db)
	mailSvc := emailsvc.New(conf, logger)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(conf, usrRepo, mailSvc, nil, logger)
	appSvc := application.NewService(sqlxrepos.NewApplicationRepository(db), usrSvc, tx, mailSvc, nil, logger)
	lessonSvc := lesson.NewService(sqlxrepos.NewLessonRepository(db), nil, logger)
	taskSvc := task.NewService(conf, sqlxrepos.NewTaskRepository(db), lessonSvc, usrSvc, tx, store, mailSvc, nil, logger)

	// start CLI
	cli := newCommandLine(db.DB, usrRepo, appSvc, taskSvc)
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
