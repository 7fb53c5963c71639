package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core"
)

func newValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "aB1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "aB1! xyzw", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234598760", want: pwdNotAllNumTag},
		{name: "no special", pwd: "abcDEF123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdef12!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Jdoe_camp1!", want: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", want: pwdNoCommonTag},
		{name: "valid", pwd: "Tr0ub4dor&3x", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPasswordPolicy(tt.pwd, "John Doe", "jdoe_camp", "jdoe@test.cd"))
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		pwd, err := GeneratePassword("John Doe", "jdoe_camp", "jdoe@test.cd")
		require.NoError(t, err)
		assert.Len(t, pwd, generatedPasswordLen)
		assert.Empty(t, CheckPasswordPolicy(pwd, "John Doe", "jdoe_camp", "jdoe@test.cd"))
		assert.False(t, seen[pwd], "generated the same password twice")
		seen[pwd] = true
	}
}

func TestUsernameFromEmail(t *testing.T) {
	tests := map[string]string{
		"Jane.Doe@test.cd":   "jane_doe",
		"jo@test.cd":         "jo_camp",
		"--@test.cd":         "participant",
		"  big.Boss+x@a.io ": "big_boss_x",
	}
	for email, want := range tests {
		assert.Equal(t, want, UsernameFromEmail(email), email)
	}
}

func TestNewUserValidation(t *testing.T) {
	validate := newValidate()

	tests := []struct {
		name       string
		nu         NewUser
		wantFields []string
	}{
		{
			name:       "username or email required",
			nu:         NewUser{Name: "X", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x"},
			wantFields: []string{"username", "email"},
		},
		{
			name:       "invalid roles",
			nu:         NewUser{Name: "X", Email: "x@test.cd", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x", Roles: []string{"lol"}},
			wantFields: []string{"roles"},
		},
		{
			name:       "password mismatch",
			nu:         NewUser{Name: "X", Email: "x@test.cd", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3y"},
			wantFields: []string{"password_confirm"},
		},
		{
			name:       "weak password",
			nu:         NewUser{Name: "X", Email: "x@test.cd", Password: "password", PasswordConfirm: "password"},
			wantFields: []string{"password"},
		},
		{
			name: "valid",
			nu:   NewUser{Name: "X", Username: "xavier", Email: "x@test.cd", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x", Roles: []string{RoleInstructor}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var fields []string
			for _, fe := range err.(validator.ValidationErrors) {
				fields = append(fields, fe.Field())
			}
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestRolePriorities(t *testing.T) {
	assert.Equal(t, 30, MaxRolePriority([]string{RoleParticipant, RoleAdminOwner}))
	assert.Equal(t, 0, MaxRolePriority(nil))

	usr := User{Roles: []string{RoleAdminOwner}}
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsStaff())
	assert.False(t, usr.IsParticipant())

	usr = User{Roles: []string{RoleInstructor}}
	assert.True(t, usr.IsStaff())
	assert.False(t, usr.IsAdmin())
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Tr0ub4dor&3x", "John Doe", "jdoe_camp", "jdoe@test.cd"))

	err := ValidatePassword("short", "", "", "")
	require.Error(t, err)
	assert.Equal(t, "password: "+pwdMinLenText, err.Error())
}
