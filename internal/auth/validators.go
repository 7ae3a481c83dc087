package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

// ErrPasswordRejected wraps every password validation failure.
var ErrPasswordRejected = errors.New("password rejected")

const (
	defaultMinLength     = 8
	defaultMaxSimilarity = 0.7
)

// PasswordValidator checks a candidate password, optionally against the user it is for.
type PasswordValidator interface {
	Validate(password string, user *storage.User) error
}

// NewPasswordValidators builds the configured validator chain.
func NewPasswordValidators(specs []config.PasswordValidator) ([]PasswordValidator, error) {
	out := make([]PasswordValidator, 0, len(specs))
	for _, spec := range specs {
		switch spec.Name {
		case config.ValidatorUserAttributeSimilarity:
			out = append(out, similarityValidator{maxSimilarity: defaultMaxSimilarity})
		case config.ValidatorMinimumLength:
			minLength := defaultMinLength
			if v, ok := spec.Options["min_length"]; ok && v > 0 {
				minLength = v
			}
			out = append(out, minimumLengthValidator{minLength: minLength})
		case config.ValidatorCommonPassword:
			out = append(out, commonPasswordValidator{})
		case config.ValidatorNumericPassword:
			out = append(out, numericPasswordValidator{})
		default:
			return nil, fmt.Errorf("unknown password validator %q", spec.Name)
		}
	}
	return out, nil
}

// ValidatePassword runs every validator and joins all failures.
func ValidatePassword(validators []PasswordValidator, password string, user *storage.User) error {
	var errs []error
	for _, v := range validators {
		if err := v.Validate(password, user); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPasswordRejected, errors.Join(errs...))
}

type minimumLengthValidator struct {
	minLength int
}

func (v minimumLengthValidator) Validate(password string, _ *storage.User) error {
	if len([]rune(password)) < v.minLength {
		return fmt.Errorf("this password is too short, it must contain at least %d characters", v.minLength)
	}
	return nil
}

type numericPasswordValidator struct{}

func (numericPasswordValidator) Validate(password string, _ *storage.User) error {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return errors.New("this password is entirely numeric")
}

type commonPasswordValidator struct{}

func (commonPasswordValidator) Validate(password string, _ *storage.User) error {
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		return errors.New("this password is too common")
	}
	return nil
}

var nonWord = regexp.MustCompile(`\W+`)

type similarityValidator struct {
	maxSimilarity float64
}

func (v similarityValidator) Validate(password string, user *storage.User) error {
	if user == nil {
		return nil
	}
	password = strings.ToLower(password)
	for _, attr := range []struct{ name, value string }{
		{"username", user.Username},
		{"email address", user.Email},
	} {
		if attr.value == "" {
			continue
		}
		value := strings.ToLower(attr.value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || exceedsLengthRatio(password, v.maxSimilarity, part) {
				continue
			}
			m := difflib.NewMatcher(chars(password), chars(part))
			if m.QuickRatio() >= v.maxSimilarity {
				return fmt.Errorf("the password is too similar to the %s", attr.name)
			}
		}
	}
	return nil
}

// exceedsLengthRatio reports whether value is too short next to password for
// the similarity ratio to ever reach maxSimilarity, so it need not be compared.
func exceedsLengthRatio(password string, maxSimilarity float64, value string) bool {
	pwdLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	return pwdLen >= 10*valueLen && float64(valueLen) < maxSimilarity/2*float64(pwdLen)
}

// chars splits s into single-character elements for the sequence matcher.
func chars(s string) []string {
	return strings.Split(s, "")
}

var commonPasswords = setOf(
	"123456", "password", "12345678", "qwerty", "123456789", "12345", "1234",
	"111111", "1234567", "dragon", "123123", "baseball", "abc123", "football",
	"monkey", "letmein", "696969", "shadow", "master", "666666", "qwertyuiop",
	"123321", "mustang", "1234567890", "michael", "654321", "superman",
	"1qaz2wsx", "7777777", "121212", "000000", "qazwsx", "123qwe", "killer",
	"trustno1", "jordan", "jennifer", "zxcvbnm", "asdfgh", "hunter", "buster",
	"soccer", "harley", "batman", "andrew", "tigger", "sunshine", "iloveyou",
	"2000", "charlie", "robert", "thomas", "hockey", "ranger", "daniel",
	"starwars", "klaster", "112233", "george", "computer", "michelle",
	"jessica", "pepper", "1111", "zxcvbn", "555555", "11111111", "131313",
	"freedom", "777777", "pass", "maggie", "159753", "aaaaaa", "ginger",
	"princess", "joshua", "cheese", "amanda", "summer", "love", "ashley",
	"nicole", "chelsea", "biteme", "matthew", "access", "yankees", "987654321",
	"dallas", "austin", "thunder", "taylor", "matrix", "password1", "welcome",
	"admin", "administrator", "passw0rd", "changeme", "qwerty123",
)

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
