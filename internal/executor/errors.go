// Package executor runs validated SQL under a read-only, time- and
// row-bounded execution context. It is the second enforcement layer:
// even a validator bypass cannot mutate data here.
package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClass drives the orchestrator's retry decision.
type ErrorClass int

const (
	// ClassTransient errors are eligible for one regeneration retry with
	// the error text fed back as corrective context: timeouts, deadlocks,
	// connection hiccups, resource pressure, and schema/syntax errors the
	// generator can fix.
	ClassTransient ErrorClass = iota
	// ClassPermanent errors are surfaced immediately without retry:
	// permission denied, authentication, unknown databases.
	ClassPermanent
)

// QueryError wraps a database failure with its retry classification.
type QueryError struct {
	Class ErrorClass
	Err   error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// Transient reports whether err is a QueryError eligible for retry.
func Transient(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Class == ClassTransient
}

// classify maps a driver error to its retry class. Unknown errors are
// permanent: the bounded loop must never spin on a failure mode it does
// not understand.
func classify(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch code {
		case "57014": // query_canceled (statement timeout)
			return ClassTransient
		case "40P01", "40001": // deadlock_detected, serialization_failure
			return ClassTransient
		case "57P03": // cannot_connect_now
			return ClassTransient
		case "42501": // insufficient_privilege
			return ClassPermanent
		}
		switch {
		case strings.HasPrefix(code, "53"): // insufficient_resources
			return ClassTransient
		case strings.HasPrefix(code, "42"): // syntax / undefined object:
			// the generator caused this and can repair it with feedback.
			return ClassTransient
		case strings.HasPrefix(code, "08"): // connection exception: a
			// hiccup the pool can heal on the next attempt.
			return ClassTransient
		case strings.HasPrefix(code, "28"): // invalid authorization
			return ClassPermanent
		case strings.HasPrefix(code, "3D"): // invalid catalog name
			return ClassPermanent
		}
		return ClassPermanent
	}

	// Non-PostgreSQL drivers surface plain errors; fall back to message
	// heuristics mirroring the driver wording.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "syntax error"):
		return ClassTransient
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "readonly"),
		strings.Contains(msg, "read-only"):
		return ClassPermanent
	}
	return ClassPermanent
}
