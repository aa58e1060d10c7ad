// Package models contains domain models shared across the txt2sql pipeline.
package models

import (
	"errors"
	"time"
)

// Classification labels the route a question takes through the pipeline.
type Classification string

const (
	// ClassificationDatabase routes through the full SQL pipeline.
	ClassificationDatabase Classification = "DATABASE"
	// ClassificationConversational answers directly from history and metadata.
	ClassificationConversational Classification = "CONVERSATIONAL"
	// ClassificationSchema answers with catalog structure, no SQL generation.
	ClassificationSchema Classification = "SCHEMA"
)

// Valid reports whether c is one of the three known routes.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationDatabase, ClassificationConversational, ClassificationSchema:
		return true
	}
	return false
}

// SQLCandidate is one generation attempt. The text is untrusted until it
// passes the safety validator.
type SQLCandidate struct {
	SQL         string `json:"sql"`
	Attempt     int    `json:"attempt"`
	PriorReason string `json:"prior_reason,omitempty"`
}

// Verdict is the outcome of safety validation for a single candidate.
type Verdict struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	Normalized string `json:"normalized,omitempty"`
}

// ExecutionResult holds the rows returned by a validated SELECT.
type ExecutionResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
}

// Turn is one question/answer exchange within a session.
type Turn struct {
	Question       string           `json:"question"`
	Classification Classification   `json:"classification"`
	Candidate      *SQLCandidate    `json:"candidate,omitempty"`
	Verdict        *Verdict         `json:"verdict,omitempty"`
	Result         *ExecutionResult `json:"result,omitempty"`
	Response       string           `json:"response"`
	Timestamp      time.Time        `json:"timestamp"`
}

// ErrInvalidTurn is returned when a turn violates the classification
// invariants (SQL artifacts on a non-DATABASE turn, or an execution
// result without a passing verdict).
var ErrInvalidTurn = errors.New("invalid turn")

// Validate checks the structural invariants before a turn is persisted.
func (t *Turn) Validate() error {
	if !t.Classification.Valid() {
		return ErrInvalidTurn
	}
	if t.Classification != ClassificationDatabase {
		if t.Candidate != nil || t.Verdict != nil || t.Result != nil {
			return ErrInvalidTurn
		}
		return nil
	}
	if t.Result != nil && (t.Verdict == nil || !t.Verdict.Valid) {
		return ErrInvalidTurn
	}
	return nil
}

// QueryResult is the terminal, API-facing outcome of one pipeline run.
// Responses are always complete: either a full answer or a full error.
type QueryResult struct {
	Success       bool    `json:"success"`
	Response      string  `json:"response"`
	SQLQuery      string  `json:"sql_query,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	SessionID     string  `json:"session_id,omitempty"`
}
