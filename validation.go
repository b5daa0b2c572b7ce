package credentials

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const passwordSpecialChars = "@$!%*?&#^(),.\":{}|<>"

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	codePattern     = regexp.MustCompile(`^\d{6}$`)
)

func emailRules() []validation.Rule {
	return []validation.Rule{validation.Required, validation.Length(3, 100), is.Email}
}

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(3, 50),
		validation.Match(usernamePattern).Error("must contain only letters, digits and underscores"),
	}
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(8, 128),
		validation.By(passwordComplexity),
	}
}

func codeRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Match(codePattern).Error("must be a 6 digit code"),
	}
}

// passwordComplexity requires a lower case letter, an upper case letter, a
// digit and a special character.
func passwordComplexity(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			special = true
		}
	}

	if !lower || !upper || !digit || !special {
		return errors.New("must contain a lower case letter, an upper case letter, a digit and a special character")
	}
	return nil
}

func invalidMessage(err error, msg string) error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		metadata := make(map[string]any, len(fields))
		for field, ferr := range fields {
			metadata[field] = ferr.Error()
		}
		return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode("INVALID_PAYLOAD").
			WithMetadata(metadata)
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode("INVALID_PAYLOAD")
}

// rewrap passes categorized errors through and wraps anything else as
// internal.
func rewrap(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
