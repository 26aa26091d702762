package logsvc

import (
	"log"
	"sort"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/user"
)

// RollbarLogger reports to Rollbar and mirrors every entry on std.
// Every report carries the component the logger was built for (api, db, admin...).
type RollbarLogger struct {
	std       *log.Logger
	component string
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the Rollbar client from conf.
// Reporting is on only when a token is set, outside of debug & test modes.
func NewRollbarLogger(std *log.Logger, component string, conf *core.Config) *RollbarLogger {
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, component: component}
}

// entry is a log call split into what Rollbar expects.
type entry struct {
	msg    string
	err    error
	extras map[string]interface{}
	usr    *user.User
	others []interface{}
}

func (l RollbarLogger) parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: map[string]interface{}{"component": l.component}}
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if e.usr == nil { // only one person per report
				usr := a
				e.usr = &usr
			}
		case error:
			if e.err == nil {
				e.err = a
			} else {
				e.others = append(e.others, a)
			}
		case map[string]interface{}:
			for k, v := range a {
				e.extras[k] = v
			}
		default:
			e.others = append(e.others, a)
		}
	}
	if len(e.others) > 0 {
		e.extras["args"] = e.others
	}
	return e
}

func (l RollbarLogger) report(level string, e entry) {
	if e.usr != nil {
		rollbar.SetPerson(e.usr.ID, e.usr.Name, e.usr.Email)
	} else {
		rollbar.ClearPerson()
	}

	args := []interface{}{e.msg, e.extras}
	if e.err != nil {
		// the message is dropped from error reports
		e.extras["message"] = e.msg
		args = append(args, e.err)
	}
	rollbar.Log(level, args...)
}

func (l RollbarLogger) print(level string, e entry) {
	l.std.Printf("%s: %s", level, e.msg)
	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		if k != "component" && k != "args" && k != "message" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.std.Printf("  %s=%+v\n", k, e.extras[k])
	}
	for _, o := range e.others {
		l.std.Printf("%+v\n", o)
	}
}

func (l RollbarLogger) log(level, label, msg string, args []interface{}) {
	e := l.parse(msg, args)
	l.report(level, e)
	l.print(label, e)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, "DEBUG", msg, args) }

func (l RollbarLogger) Info(msg string, args ...interface{}) { l.log(rollbar.INFO, "INFO", msg, args) }

func (l RollbarLogger) Warn(msg string, args ...interface{}) { l.log(rollbar.WARN, "WARN", msg, args) }

func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, "ERROR", msg, args) }

// Fatal flushes the pending Rollbar reports before exiting.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, "FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
