package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
	logsvc "github.com/kampuslab/kampus/services/logger"
)

// NewConfig returns the TEST config.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.RollbarToken = ""
	conf.Grading.RecomputeMode = core.RecomputeSync
	conf.Auth.StudentEmailDomain = ""
	conf.Auth.StaffEmailDomain = ""
	return conf
}

// NewLogger returns a silent logger.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), "test", conf)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	major := user.MajorNone
	if role == user.RoleStudent {
		major = "BUS"
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Major:     major,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, code, name, lecturerID string) course.Course {
	t.Helper()
	now := core.Now()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Code:       code,
		Name:       name,
		Credits:    3,
		Major:      "BUS",
		LecturerID: lecturerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateComponent(t *testing.T, repo course.Repository, courseID, name, weight string) course.Component {
	t.Helper()
	cmp, err := repo.CreateComponent(context.Background(), course.Component{
		CourseID: courseID,
		Name:     name,
		Weight:   decimal.RequireFromString(weight),
	})
	if err != nil {
		t.Fatalf("CreateComponent() failed: %v", err)
	}
	return cmp
}
