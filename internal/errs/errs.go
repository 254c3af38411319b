// Package errs implements the error taxonomy in spec.md §7 as sentinel
// errors plus a classification wrapper, so callers dispatch with
// errors.Is/errors.As instead of parsing message strings.
package errs

import (
	"errors"
	"fmt"
)

// Class is one of the abstract error categories from spec.md §7.
type Class string

const (
	ClassConfig           Class = "config"
	ClassAuthExpired      Class = "auth_expired"
	ClassTransient        Class = "transient"
	ClassPermanent        Class = "permanent"
	ClassParseError       Class = "parse_error"
	ClassTenantIsolation  Class = "tenant_isolation_breach"
	ClassFatal            Class = "fatal"
)

// Sentinel errors for errors.Is comparisons where no extra detail is needed.
var (
	ErrTenantIsolationBreach = errors.New("errs: call made without or with mismatched tenant_id")
	ErrFatal                 = errors.New("errs: fatal error, job must abort")
)

// Classified wraps an underlying error with its taxonomy class and the
// item/operation it occurred on, so the Orchestrator can decide whether
// to retry, skip-and-continue, or abort.
type Classified struct {
	Class Class
	Op    string
	Err   error
}

func (e *Classified) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Class, e.Err)
}

func (e *Classified) Unwrap() error { return e.Err }

// New builds a Classified error.
func New(class Class, op string, err error) *Classified {
	return &Classified{Class: class, Op: op, Err: err}
}

// Transient wraps err as a retryable transient error.
func Transient(op string, err error) *Classified { return New(ClassTransient, op, err) }

// Permanent wraps err as a non-retryable, skip-and-continue error.
func Permanent(op string, err error) *Classified { return New(ClassPermanent, op, err) }

// ParseError wraps err as a skip-item parse failure (invalid LLM JSON,
// empty parser output).
func ParseError(op string, err error) *Classified { return New(ClassParseError, op, err) }

// Fatal wraps err as a job-aborting fatal error.
func Fatal(op string, err error) *Classified { return New(ClassFatal, op, err) }

// IsTransient reports whether err (or anything it wraps) is classified
// transient and therefore eligible for retry.
func IsTransient(err error) bool { return classIs(err, ClassTransient) }

// IsFatal reports whether err (or anything it wraps) is classified fatal.
func IsFatal(err error) bool {
	if errors.Is(err, ErrFatal) {
		return true
	}
	return classIs(err, ClassFatal)
}

// IsPermanent reports whether err is a permanent, skip-worthy error.
func IsPermanent(err error) bool { return classIs(err, ClassPermanent) }

// IsParseError reports whether err is a parse/decode failure.
func IsParseError(err error) bool { return classIs(err, ClassParseError) }

func classIs(err error, c Class) bool {
	var ce *Classified
	if errors.As(err, &ce) {
		return ce.Class == c
	}
	return false
}
