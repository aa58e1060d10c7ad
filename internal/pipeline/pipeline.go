package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/compose"
	"github.com/saudata/txt2sql/internal/executor"
	"github.com/saudata/txt2sql/internal/metrics"
	"github.com/saudata/txt2sql/internal/selector"
	"github.com/saudata/txt2sql/internal/session"
	"github.com/saudata/txt2sql/internal/sqlsafe"
	"github.com/saudata/txt2sql/pkg/models"
)

// Classifier labels one question; implementations must be total.
type Classifier interface {
	Classify(ctx context.Context, question string, history []models.Turn) models.Classification
}

// TableSelector narrows the catalog to relevant tables.
type TableSelector interface {
	Select(question string, cat *catalog.Catalog) ([]string, error)
}

// SQLGenerator produces attempt-indexed candidates.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, tableOrder []string, tables map[string]catalog.Table,
		history []models.Turn, attempt int, priorReason string) (*models.SQLCandidate, error)
}

// Executor runs validated SQL.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error)
}

// Composer renders the terminal reply.
type Composer interface {
	Compose(ctx context.Context, in compose.Input) string
}

// TurnRecorder persists completed turns outside the session store.
// Recording happens with the exact turn the run produced, so concurrent
// runs on the same session can never archive each other's turns.
type TurnRecorder interface {
	Record(ctx context.Context, sessionID string, turn models.Turn, success bool) error
}

// Orchestrator wires the pipeline components into the state machine.
type Orchestrator struct {
	classifier    Classifier
	selector      TableSelector
	generator     SQLGenerator
	executor      Executor
	composer      Composer
	sessions      *session.Store
	catalogs      *catalog.Holder
	recorder      TurnRecorder
	maxAttempts   int
	historyWindow int
}

// Config collects the orchestrator dependencies. Recorder may be nil
// when turn archiving is disabled.
type Config struct {
	Classifier    Classifier
	Selector      TableSelector
	Generator     SQLGenerator
	Executor      Executor
	Composer      Composer
	Sessions      *session.Store
	Catalogs      *catalog.Holder
	Recorder      TurnRecorder
	MaxAttempts   int
	HistoryWindow int
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &Orchestrator{
		classifier:    cfg.Classifier,
		selector:      cfg.Selector,
		generator:     cfg.Generator,
		executor:      cfg.Executor,
		composer:      cfg.Composer,
		sessions:      cfg.Sessions,
		catalogs:      cfg.Catalogs,
		recorder:      cfg.Recorder,
		maxAttempts:   cfg.MaxAttempts,
		historyWindow: cfg.HistoryWindow,
	}
}

// run is the mutable state threaded through one pipeline instance.
type run struct {
	state          State
	question       string
	classification models.Classification
	history        []models.Turn
	tableOrder     []string
	tables         map[string]catalog.Table
	candidate      *models.SQLCandidate
	verdict        *models.Verdict
	result         *models.ExecutionResult
	attempt        int
	generations    int
	priorReason    string
	failKind       string
	failDetail     string
	response       string
}

// Process executes one pipeline run. The only error it returns is
// session.ErrSessionNotFound (a client error); every internal failure is
// converted into a complete error response. An empty sessionID creates a
// new session.
func (o *Orchestrator) Process(ctx context.Context, question, sessionID string) (models.QueryResult, error) {
	if sessionID == "" {
		sessionID = o.sessions.Create()
	}

	release, err := o.sessions.Acquire(sessionID)
	if err != nil {
		return models.QueryResult{}, err
	}
	defer release()

	history, err := o.sessions.History(sessionID, o.historyWindow)
	if err != nil {
		return models.QueryResult{}, err
	}

	start := time.Now()
	cat := o.catalogs.Current()

	r := &run{state: StateStart, question: question, history: history}
	o.loop(ctx, r, cat)

	elapsed := time.Since(start)
	result := o.finish(ctx, r, sessionID, elapsed)
	return result, nil
}

// loop advances the state machine until RESPONSE_COMPOSED. Transitions
// mirror the documented transition table; the regeneration edge is the
// only cycle and is bounded by maxAttempts.
func (o *Orchestrator) loop(ctx context.Context, r *run, cat *catalog.Catalog) {
	for r.state != StateResponseComposed && r.state != StateDone {
		if err := ctx.Err(); err != nil {
			r.fail(compose.FailInternal, err.Error())
			break
		}

		prev := r.state
		switch r.state {

		case StateStart:
			r.classification = o.classifier.Classify(ctx, r.question, r.history)
			r.state = StateClassified

		case StateClassified:
			switch r.classification {
			case models.ClassificationDatabase:
				r.state = StateTablesSelected
			case models.ClassificationSchema:
				r.state = StateSchemaLookup
			default:
				r.state = StateResponseComposed
			}

		case StateTablesSelected:
			names, err := o.selector.Select(r.question, cat)
			if err != nil {
				if errors.Is(err, selector.ErrNoRelevantTable) {
					r.fail(compose.FailNoRelevantTable, err.Error())
				} else {
					r.fail(compose.FailInternal, err.Error())
				}
				break
			}
			r.tableOrder = names
			r.state = StateSchemaResolved

		case StateSchemaResolved:
			tables, err := cat.Resolve(r.tableOrder)
			if err != nil {
				// Unreachable given the selector's contract; logged if
				// ever observed.
				log.Error().Err(err).Strs("tables", r.tableOrder).Msg("Schema resolution failed")
				r.fail(compose.FailUnknownTable, err.Error())
				break
			}
			r.tables = tables
			r.state = StateSQLGenerated

		case StateSQLGenerated:
			if r.attempt >= o.maxAttempts {
				r.fail(compose.FailMaxAttempts, "generation attempts exhausted")
				break
			}
			candidate, err := o.generator.Generate(ctx, r.question, r.tableOrder, r.tables, r.history, r.attempt, r.priorReason)
			r.generations++
			if err != nil {
				log.Warn().Err(err).Int("attempt", r.attempt).Msg("SQL generation failed")
				r.attempt++
				if r.attempt >= o.maxAttempts {
					r.fail(compose.FailGeneration, err.Error())
				}
				// Outcome failure-with-budget: stay in SQL_GENERATED.
				break
			}
			r.candidate = candidate
			r.state = StateSQLValidated

		case StateSQLValidated:
			verdict := sqlsafe.Validate(r.candidate.SQL)
			r.verdict = &verdict
			if !verdict.Valid {
				metrics.ObserveRejection(verdict.Reason)
				log.Info().
					Str("reason", verdict.Reason).
					Int("attempt", r.attempt).
					Msg("SQL candidate rejected")
				r.priorReason = verdict.Reason
				r.attempt++
				r.state = StateSQLGenerated
				break
			}
			r.state = StateSQLExecuted

		case StateSQLExecuted:
			result, err := o.executor.Execute(ctx, r.verdict.Normalized)
			if err != nil {
				if executor.Transient(err) {
					log.Warn().Err(err).Int("attempt", r.attempt).Msg("Transient execution error, regenerating")
					r.priorReason = "erro de execução: " + err.Error()
					r.attempt++
					r.state = StateSQLGenerated
					break
				}
				r.fail(compose.FailExecution, err.Error())
				break
			}
			r.result = result
			r.state = StateResponseComposed

		case StateSchemaLookup:
			// The catalog snapshot is already in hand; composition reads
			// it directly.
			r.state = StateResponseComposed
		}

		if r.state != prev {
			log.Debug().
				Str("from", prev.String()).
				Str("to", r.state.String()).
				Msg("Pipeline transition")
		}
	}
}

// fail routes the run to error composition.
func (r *run) fail(kind, detail string) {
	r.failKind = kind
	r.failDetail = detail
	r.state = StateResponseComposed
}

// finish composes the reply, appends the turn, and builds the terminal
// QueryResult.
func (o *Orchestrator) finish(ctx context.Context, r *run, sessionID string, elapsed time.Duration) models.QueryResult {
	cat := o.catalogs.Current()
	r.response = o.composer.Compose(ctx, compose.Input{
		Question:       r.question,
		Classification: r.classification,
		SQL:            r.executedSQL(),
		Result:         r.result,
		History:        r.history,
		Catalog:        cat,
		FailureKind:    r.failKind,
		FailureDetail:  r.failDetail,
	})
	r.state = StateDone

	turn := models.Turn{
		Question:       r.question,
		Classification: r.classification,
		Response:       r.response,
		Timestamp:      time.Now(),
	}
	if r.classification == models.ClassificationDatabase {
		turn.Candidate = r.candidate
		turn.Verdict = r.verdict
		turn.Result = r.result
	}
	if !turn.Classification.Valid() {
		// Classification never ran (cancelled before START completed).
		turn.Classification = models.ClassificationConversational
		turn.Candidate, turn.Verdict, turn.Result = nil, nil, nil
	}
	if err := o.sessions.Append(sessionID, turn); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to append turn")
	}

	success := r.failKind == compose.FailNone
	if o.recorder != nil {
		// Best effort, on a detached context so a cancelled request still
		// leaves an audit record.
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.recorder.Record(recCtx, sessionID, turn, success); err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("Failed to archive turn")
		}
		cancel()
	}
	metrics.ObserveRun(string(turn.Classification), success, elapsed)
	if r.generations > 0 {
		metrics.ObserveAttempts(r.generations)
	}

	result := models.QueryResult{
		Success:       success,
		Response:      r.response,
		SQLQuery:      r.executedSQL(),
		ExecutionTime: elapsed.Seconds(),
		SessionID:     sessionID,
	}
	if !success {
		result.ErrorMessage = r.failDetail
	}
	return result
}

// executedSQL returns the normalized statement only when it passed
// validation; rejected candidates are never echoed to clients.
func (r *run) executedSQL() string {
	if r.verdict != nil && r.verdict.Valid {
		return r.verdict.Normalized
	}
	return ""
}
