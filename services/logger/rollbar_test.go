package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.RollbarToken = ""
	return NewRollbarLogger(log.New(buf, "", 0), "grading", conf)
}

func TestRollbarLogger_parse(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	err1, err2 := errors.New("boom"), errors.New("bang")
	usr1 := user.User{ID: "1", Name: "Siti"}

	e := l.parse("recomputing", []interface{}{
		map[string]interface{}{"course_id": "c1"},
		err1,
		usr1,
		user.User{ID: "2"},
		map[string]interface{}{"student_id": "s1"},
		err2,
		42,
	})

	assert.Equal(t, "recomputing", e.msg)
	assert.Equal(t, err1, e.err)
	if assert.NotNil(t, e.usr) {
		assert.Equal(t, usr1.ID, e.usr.ID)
	}
	assert.Equal(t, []interface{}{err2, 42}, e.others)
	assert.Equal(t, map[string]interface{}{
		"component":  "grading",
		"course_id":  "c1",
		"student_id": "s1",
		"args":       []interface{}{err2, 42},
	}, e.extras)

	e = l.parse("plain", nil)
	assert.Nil(t, e.err)
	assert.Nil(t, e.usr)
	assert.Equal(t, map[string]interface{}{"component": "grading"}, e.extras)
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)

	l.Warn("final grade kept", map[string]interface{}{"student_id": "s1", "course_id": "c1"}, user.User{ID: "1"})

	assert.Equal(t, "WARN: final grade kept\n  course_id=c1\n  student_id=s1\n", buf.String())
}
