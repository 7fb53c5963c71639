package logsvc

import (
	"log"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

// RollbarLogger writes to a std logger and reports to Rollbar when enabled.
// Debug messages are only written in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
	mu    sync.Mutex // rollbar's person is global
}

var _ core.Logger = (*RollbarLogger)(nil) // interface compliance check

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// Close waits for pending reports to be sent.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// prepare splits the acting user from the other args.
// expected fmt: msg | error, map[string]interface{}, user.User
func prepare(msg string, args []interface{}) (*user.User, []interface{}) {
	var usr *user.User
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if u, ok := arg.(user.User); ok {
			if usr == nil { // only set one User
				usr = &u
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	return usr, newArgs
}

func (l *RollbarLogger) report(level string, msg string, args []interface{}) {
	usr, rbArgs := prepare(msg, args)

	l.mu.Lock()
	defer l.mu.Unlock()
	if usr != nil {
		uname := usr.Username
		if uname == "" {
			uname = usr.Name
		}
		rollbar.SetPerson(usr.ID, uname, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, rbArgs...)
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s\n", level, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("  user: %s (%s)\n", usr.ID, usr.Email)
			continue
		}
		l.std.Printf("  %+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.report(rollbar.DEBUG, msg, args)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	l.print("FATAL", msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
