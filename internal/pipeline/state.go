// Package pipeline contains the orchestrator: an explicit finite-state
// machine that composes classification, table selection, SQL generation,
// safety validation, execution, and response composition into one run
// per request.
package pipeline

// State is a pipeline position. Every (state, outcome) pair maps to
// exactly one successor in Orchestrator.Process; there is no implicit
// fallthrough.
type State int

const (
	StateStart State = iota
	StateClassified
	StateTablesSelected
	StateSchemaResolved
	StateSQLGenerated
	StateSQLValidated
	StateSQLExecuted
	StateSchemaLookup
	StateResponseComposed
	StateDone
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateClassified:
		return "CLASSIFIED"
	case StateTablesSelected:
		return "TABLES_SELECTED"
	case StateSchemaResolved:
		return "SCHEMA_RESOLVED"
	case StateSQLGenerated:
		return "SQL_GENERATED"
	case StateSQLValidated:
		return "SQL_VALIDATED"
	case StateSQLExecuted:
		return "SQL_EXECUTED"
	case StateSchemaLookup:
		return "SCHEMA_LOOKUP"
	case StateResponseComposed:
		return "RESPONSE_COMPOSED"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}
