package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
	"github.com/kampuslab/kampus/core/user"
)

// Tables are always locked in this order: user, course, component, score, finalGrade.
type (
	DB struct {
		user       *userTable
		course     *courseTable
		component  *componentTable
		score      *scoreTable
		finalGrade *finalGradeTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	componentTable struct {
		sync.RWMutex
		table map[string]*course.Component
	}

	scoreTable struct {
		sync.RWMutex
		table map[string]*grade.ScoreEntry
	}

	finalGradeTable struct {
		sync.RWMutex
		table map[string]*grade.FinalGrade
	}
)

var _ core.TxRunner = (*DB)(nil)

func Open() *DB {
	db := new(DB)
	db.Reset()
	return db
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.user = &userTable{table: make(map[string]*user.User)}
	db.course = &courseTable{table: make(map[string]*course.Course)}
	db.component = &componentTable{table: make(map[string]*course.Component)}
	db.score = &scoreTable{table: make(map[string]*grade.ScoreEntry)}
	db.finalGrade = &finalGradeTable{table: make(map[string]*grade.FinalGrade)}
}

// RunInTx runs fn without any transaction: every repository call is atomic on its own.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Equal(b):
		return 0
	case a.Before(b):
		return -1
	default:
		return 1
	}
}
