package user

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const (
	generatedPasswordLen = 14

	pwdLowers   = "abcdefghijkmnopqrstuvwxyz"
	pwdUppers   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	pwdDigits   = "23456789"
	pwdSpecials = "!@#$%&*?-_+="
)

// GeneratePassword returns a random password that satisfies the password policy for the given user attributes.
// Ambiguous characters (l, 1, O, 0) are left out since the password is read from an email.
func GeneratePassword(name, uname, email string) (string, error) {
	all := pwdLowers + pwdUppers + pwdDigits + pwdSpecials
	for attempt := 0; attempt < 10; attempt++ {
		pwd := make([]byte, 0, generatedPasswordLen)
		// one of each class, the rest from the whole alphabet
		for _, class := range []string{pwdLowers, pwdUppers, pwdDigits, pwdSpecials} {
			c, err := randChar(class)
			if err != nil {
				return "", err
			}
			pwd = append(pwd, c)
		}
		for len(pwd) < generatedPasswordLen {
			c, err := randChar(all)
			if err != nil {
				return "", err
			}
			pwd = append(pwd, c)
		}
		if err := shuffle(pwd); err != nil {
			return "", err
		}
		if CheckPasswordPolicy(string(pwd), name, uname, email) == "" {
			return string(pwd), nil
		}
	}
	return "", errors.New("could not generate a password satisfying the policy")
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, errors.Wrap(err, "reading random number")
	}
	return int(v.Int64()), nil
}

func randChar(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
