package main

import (
	"log"
	"os"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/grade"
	emailsvc "github.com/kampuslab/kampus/services/email"
	logsvc "github.com/kampuslab/kampus/services/logger"
	"github.com/kampuslab/kampus/storage/database"
	sqlxrepos "github.com/kampuslab/kampus/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), "admin", conf)

	core.ParseEmailTemplates(conf, logger)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up repos & services
	usrRepo := sqlxrepos.NewUserRepository(db)
	crsRepo := sqlxrepos.NewCourseRepository(db)
	grdRepo := sqlxrepos.NewGradeRepository(db)
	agg := grade.NewAggregator(usrRepo, crsRepo, grdRepo, database.NewTxRunner(db), logger)
	agg.Subscribe(grade.NewMailNotifier(usrRepo, crsRepo, emailsvc.NewService(conf, logger), logger))

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		grdRepo: grdRepo,
		agg:     agg,
		logger:  logger,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
