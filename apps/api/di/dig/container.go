package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/kampuslab/kampus/apps/api/echo"
	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
	"github.com/kampuslab/kampus/core/user"
	emailsvc "github.com/kampuslab/kampus/services/email"
	logsvc "github.com/kampuslab/kampus/services/logger"
	"github.com/kampuslab/kampus/storage/database"
	sqlxrepos "github.com/kampuslab/kampus/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// TriggerStopper drains the pending final grade recomputations.
type TriggerStopper func(context.Context) error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, "api", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, "db", conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, core.DB) {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newUserRepository(db core.DB) user.Repository { return sqlxrepos.NewUserRepository(db) }

func newCourseRepository(db core.DB) course.Repository { return sqlxrepos.NewCourseRepository(db) }

func newGradeRepository(db core.DB) grade.Repository { return sqlxrepos.NewGradeRepository(db) }

func newAggregator(
	usrRepo user.Repository,
	crsRepo course.Repository,
	repo grade.Repository,
	tx core.TxRunner,
	mailSvc core.EmailService,
	logger core.Logger,
) *grade.Aggregator {
	agg := grade.NewAggregator(usrRepo, crsRepo, repo, tx, logger)
	agg.Subscribe(grade.NewMailNotifier(usrRepo, crsRepo, mailSvc, logger))
	return agg
}

func newTrigger(conf *core.Config, agg *grade.Aggregator, logger core.Logger) (grade.Trigger, TriggerStopper) {
	trigger, stop := grade.NewTrigger(conf, agg, logger)
	return trigger, stop
}

// newGradeService also subscribes the grade service to component changes of crsSvc.
func newGradeService(
	repo grade.Repository,
	usrRepo user.Repository,
	crsRepo course.Repository,
	crsSvc course.Service,
	agg *grade.Aggregator,
	trigger grade.Trigger,
	logger core.Logger,
) grade.Service {
	svc := grade.NewService(repo, usrRepo, crsRepo, agg, trigger, logger)
	crsSvc.Subscribe(svc)
	return svc
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTxRunner))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newUserRepository))
	must(c.Provide(newCourseRepository))
	must(c.Provide(newGradeRepository))
	must(c.Provide(newAggregator))
	must(c.Provide(newTrigger))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newGradeService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
