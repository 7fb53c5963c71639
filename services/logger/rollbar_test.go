package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/user"
)

func TestPrepare(t *testing.T) {
	usr := user.User{ID: "u1", Email: "jdoe@test.cd"}
	other := user.User{ID: "u2"}
	err := errors.New("boom")
	extra := map[string]interface{}{"id": 1}

	got, args := prepare("msg", []interface{}{err, usr, extra, other})
	if assert.NotNil(t, got) {
		assert.Equal(t, "u1", got.ID)
	}
	assert.Equal(t, []interface{}{"msg", err, extra}, args)

	got, args = prepare("msg", nil)
	assert.Nil(t, got)
	assert.Equal(t, []interface{}{"msg"}, args)
}

func TestRollbarLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	conf := core.NewTestConfig()
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)

	logger.Debug("hidden")
	logger.Warn("careful", user.User{ID: "u1", Email: "jdoe@test.cd"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: careful")
	assert.Contains(t, out, "user: u1 (jdoe@test.cd)")
}
