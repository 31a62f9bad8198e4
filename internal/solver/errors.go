package solver

import "fmt"

// ValidationError reports malformed or incomplete solver input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Detail)
}

// ConfigurationError reports input that is individually well-formed but
// mutually inconsistent, such as a course whose cohort has no sections.
type ConfigurationError struct {
	CourseID string
	Detail   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("inconsistent input for course %s: %s", e.CourseID, e.Detail)
}

// EmptyDomainError marks a group whose domain came up empty after every
// applicable filter rung. The group is set aside rather than failing the
// whole solve; Reasons explains what eliminated its placements.
type EmptyDomainError struct {
	GroupID string          `json:"group_id"`
	Reasons GroupRejections `json:"reasons,omitempty"`
}

func (e *EmptyDomainError) Error() string {
	return fmt.Sprintf("no feasible placements for group %s", e.GroupID)
}
