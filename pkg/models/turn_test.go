package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassificationValid(t *testing.T) {
	assert.True(t, ClassificationDatabase.Valid())
	assert.True(t, ClassificationConversational.Valid())
	assert.True(t, ClassificationSchema.Valid())
	assert.False(t, Classification("").Valid())
	assert.False(t, Classification("database").Valid())
	assert.False(t, Classification("OTHER").Valid())
}

func TestTurnValidate(t *testing.T) {
	validVerdict := &Verdict{Valid: true, Normalized: "SELECT 1"}
	rejected := &Verdict{Valid: false, Reason: "write operation not permitted"}
	result := &ExecutionResult{RowCount: 1}

	cases := []struct {
		name string
		turn Turn
		ok   bool
	}{
		{
			name: "conversational without artifacts",
			turn: Turn{Question: "oi", Classification: ClassificationConversational, Response: "olá", Timestamp: time.Now()},
			ok:   true,
		},
		{
			name: "database with full chain",
			turn: Turn{
				Question:       "quantas?",
				Classification: ClassificationDatabase,
				Candidate:      &SQLCandidate{SQL: "SELECT 1"},
				Verdict:        validVerdict,
				Result:         result,
				Response:       "1",
				Timestamp:      time.Now(),
			},
			ok: true,
		},
		{
			name: "database rejected without result",
			turn: Turn{
				Question:       "apague",
				Classification: ClassificationDatabase,
				Candidate:      &SQLCandidate{SQL: "DROP TABLE x"},
				Verdict:        rejected,
				Response:       "não",
				Timestamp:      time.Now(),
			},
			ok: true,
		},
		{
			name: "unknown classification",
			turn: Turn{Question: "q", Classification: "OTHER", Response: "r"},
			ok:   false,
		},
		{
			name: "sql artifacts on conversational turn",
			turn: Turn{
				Question:       "q",
				Classification: ClassificationConversational,
				Candidate:      &SQLCandidate{SQL: "SELECT 1"},
				Response:       "r",
			},
			ok: false,
		},
		{
			name: "result without passing verdict",
			turn: Turn{
				Question:       "q",
				Classification: ClassificationDatabase,
				Verdict:        rejected,
				Result:         result,
				Response:       "r",
			},
			ok: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.turn.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTurn)
			}
		})
	}
}
