package main

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/kampuslab/kampus/storage/database"
)

var gooseRunFunc = goose.Run // mockable

// migrateCommands are the goose commands that apply to the embedded migrations.
// create & fix write migration files and are left to the goose binary.
var migrateCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"up-to":     true,
	"down":      true,
	"down-to":   true,
	"redo":      true,
	"reset":     true,
	"status":    true,
	"version":   true,
}

func (cli *commandLine) migrate(args []string) error {
	if !migrateCommands[args[0]] {
		return errors.Errorf("%q: unsupported migrate command", args[0])
	}
	if err := database.SetupMigrations(); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir, args[1:]...)
}
