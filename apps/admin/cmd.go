package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
	"github.com/kampuslab/kampus/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

const defaultRecomputeWorkers = 4

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	crsRepo course.Repository
	grdRepo grade.Repository
	agg     grade.Recomputer
	logger  core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -name NAME [-role ROLE] [-major MAJOR] - create or update a user")
	fmt.Println("  resetpassword -email EMAIL [-activate] - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, up-to, down, down-to, status...)")
	fmt.Println("  seed - create the default courses")
	fmt.Println("  recompute -course ID|CODE [-student ID] [-workers N] - recompute final grades")
}

func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin.String(), "One of student, lecturer or admin.")
	addUserMajor := addUserCmd.String("major", user.MajorNone, "The student's major code.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")
	resetPasswordActivate := resetPasswordCmd.Bool("activate", false, "Reactivate the account if deactivated.")

	recomputeCmd := flag.NewFlagSet("recompute", flag.ContinueOnError)
	recomputeCourse := recomputeCmd.String("course", "", "The course ID or code.")
	recomputeStudent := recomputeCmd.String("student", "", "Only recompute this student's final grade.")
	recomputeWorkers := recomputeCmd.Int("workers", defaultRecomputeWorkers, "Number of parallel recomputations.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		role, err := user.ParseRole(*addUserRole)
		if err != nil {
			return err
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserMajor, role, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd, *resetPasswordActivate)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		return cli.seed()

	case "recompute":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *recomputeCourse == "" || *recomputeWorkers < 1 {
			recomputeCmd.Usage()
			return errHelp
		}
		return cli.recompute(*recomputeCourse, *recomputeStudent, *recomputeWorkers)

	default:
		cli.printUsage()
		return errHelp
	}
}
