package domain

import "strings"

// ValidateIdentity checks that the answers carry a usable name and email.
// The recorder refuses to persist a row without either.
func ValidateIdentity(a QuestionnaireAnswers) error {
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("name", ErrMissingName)
	}
	if strings.TrimSpace(a.Email) == "" {
		return NewValidationError("email", ErrMissingEmail)
	}
	return nil
}

// ValidateInsight checks that a parsed insight has the shape the rest of the
// pipeline depends on. The query field drives vectorization and must not be
// empty; the other fields are persisted as-is.
func ValidateInsight(in Insight) error {
	if strings.TrimSpace(in.Query) == "" {
		return NewValidationError("query", ErrEmptyQuery)
	}
	return nil
}
