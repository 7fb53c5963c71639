package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/hackcamp/apps/api/echo"
	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/user"
	appfs "github.com/trezcool/hackcamp/fs"
)

type appParams struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	DBLogger core.Logger `name:"dbLogger"`
	DB       *sqlx.DB    `optional:"true"`
	Cache    core.Cache
	UserRepo user.Repository
	Hub      *chat.Hub
	Server   *echoapi.Server
}

func startWithDig(c *dig.Container, inMemory bool) {
	must(c.Invoke(func(p appParams) {
		conf, apiLogger := p.Conf, p.Logger

		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(appfs.FS, "templates/email", conf, apiLogger)
		user.LoadCommonPasswords(apiLogger)

		if p.DB != nil {
			defer func() {
				if err := p.DB.Close(); err != nil {
					p.DBLogger.Error("Failed to close", err)
				}
			}()
		}
		defer func() {
			if err := p.Cache.Close(); err != nil {
				apiLogger.Error("Failed to close cache", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		if inMemory {
			seedOwner(p.UserRepo, apiLogger)
		}

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		if conf.Server.DebugHost != "" {
			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start Chat Hub & API Service

		hubCtx, stopHub := context.WithCancel(context.Background())
		defer stopHub()
		go p.Hub.Run(hubCtx)

		go func() {
			p.Server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-p.Server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-p.Server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := p.Server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = p.Server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

// seedOwner creates an owner account for in-memory runs, which start empty.
func seedOwner(repo user.Repository, logger core.Logger) {
	pwd, err := user.GeneratePassword("Owner", "owner", "owner@localhost")
	if err != nil {
		logger.Fatal("generating owner password", err)
	}
	now := time.Now().UTC()
	owner := user.User{
		Name:      "Owner",
		Username:  "owner",
		Email:     "owner@localhost",
		IsActive:  true,
		Roles:     []string{user.RoleAdminOwner},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = owner.SetPassword(pwd); err != nil {
		logger.Fatal("setting owner password", err)
	}
	if _, err = repo.CreateUser(context.Background(), owner); err != nil {
		logger.Fatal("creating owner", err)
	}
	logger.Info(fmt.Sprintf("in-memory mode: log in as %q with password %q", owner.Username, pwd))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
