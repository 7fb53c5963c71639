package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
)

func pqErr(code pq.ErrorCode, constraint string) error {
	return errors.Wrap(&pq.Error{Code: code, Constraint: constraint}, "exec")
}

func TestConflictMapping(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name  string
		mapFn func(error) error
		err   error
		want  error
	}{
		{"active application email", mapApplicationConflict, pqErr("23505", "applications_active_email_idx"), application.ErrEmailInUse},
		{"other application constraint", mapApplicationConflict, pqErr("23505", "applications_pkey"), nil},
		{"duplicate submission", mapSubmissionConflict, pqErr("23505", "submissions_task_id_user_id_key"), task.ErrAlreadySubmitted},
		{"submission for a deleted task", mapSubmissionConflict, pqErr("23503", "submissions_task_id_fkey"), task.ErrNotFound},
		{"username taken", mapUserConflict, pqErr("23505", "users_username_idx"), user.ErrUsernameExists},
		{"email taken", mapUserConflict, pqErr("23505", "users_email_idx"), user.ErrEmailExists},
		{"not a pq error", mapSubmissionConflict, other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mapFn(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUniqueViolation(t *testing.T) {
	constraint, ok := uniqueViolation(pqErr("23505", "channels_name_idx"))
	assert.True(t, ok)
	assert.Equal(t, "channels_name_idx", constraint)

	_, ok = uniqueViolation(pqErr("23503", "messages_channel_id_fkey"))
	assert.False(t, ok)
	assert.True(t, foreignKeyViolation(pqErr("23503", "messages_channel_id_fkey")))
	assert.False(t, foreignKeyViolation(nil))
}
