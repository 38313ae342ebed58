// Package pipeline sequences query interpretation, people and scene
// resolution, and result composition for a single search request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-curator/internal/ai"
	"github.com/kozaktomas/photo-curator/internal/compose"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/metrics"
	"github.com/kozaktomas/photo-curator/internal/query"
	"github.com/kozaktomas/photo-curator/internal/scene"
	"go.uber.org/zap"
)

// Stage names a node of the search state machine.
type Stage string

const (
	StageFetchKnownPeople Stage = "fetch_known_people"
	StageInterpretQuery   Stage = "interpret_query"
	StageResolvePeople    Stage = "resolve_people"
	StageResolveScene     Stage = "resolve_scene"
	StageComposeResults   Stage = "compose_results"
	StageDone             Stage = "done"
)

// KnownPeople lists the person names that have albums in a project.
type KnownPeople interface {
	ListPersonNames(ctx context.Context, projectID string) ([]string, error)
}

// Interpreter extracts people and a scene from the query text.
type Interpreter interface {
	Interpret(ctx context.Context, query string, knownPeople []string) (query.Extraction, error)
}

// PeopleResolver returns the images showing all named people.
type PeopleResolver interface {
	Resolve(ctx context.Context, projectID string, names []string) (*compose.ImageSet, error)
}

// SceneResolver ranks project images against a scene description.
type SceneResolver interface {
	Resolve(ctx context.Context, projectID, description string) (*scene.Result, error)
}

// Pipeline runs search requests. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	known       KnownPeople
	interpreter Interpreter
	people      PeopleResolver
	scene       SceneResolver
	transcriber ai.Transcriber
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithTranscriber enables RunVoice.
func WithTranscriber(t ai.Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l).Named("pipeline") }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New wires a Pipeline from its stages.
func New(known KnownPeople, interpreter Interpreter, people PeopleResolver, sceneResolver SceneResolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		known:       known,
		interpreter: interpreter,
		people:      people,
		scene:       sceneResolver,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is what callers see of a finished run.
type Result struct {
	RequestID     string            `json:"request_id"`
	SearchResults *compose.ImageSet `json:"result"`
	Extraction    query.Extraction  `json:"extraction"`
	Errors        []string          `json:"errors"`
}

// Failed reports whether the run recorded any error.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

type node func(ctx context.Context, s State) (State, error)

func (p *Pipeline) nodes() map[Stage]node {
	return map[Stage]node{
		StageFetchKnownPeople: p.fetchKnownPeople,
		StageInterpretQuery:   p.interpretQuery,
		StageResolvePeople:    p.resolvePeople,
		StageResolveScene:     p.resolveScene,
		StageComposeResults:   p.composeResults,
	}
}

// Run executes the state machine for one query. Stage failures never abort
// the run; they are collected in Result.Errors.
func (p *Pipeline) Run(ctx context.Context, projectID, queryStr string) *Result {
	requestID := uuid.NewString()
	logger := p.logger.With(zap.String("request_id", requestID), zap.String("project_id", projectID))
	start := time.Now()

	state := State{QueryStr: queryStr, ProjectID: projectID}
	nodes := p.nodes()
	for stage := StageFetchKnownPeople; stage != StageDone; stage = next(stage, state) {
		state = p.step(ctx, logger, stage, nodes[stage], state)
	}

	p.metrics.ObserveRequest(!state.Failed())
	logger.Info("search finished",
		zap.Duration("duration", time.Since(start)),
		zap.Int("results", state.SearchResults.Len()),
		zap.Strings("errors", state.Errors))

	return &Result{
		RequestID:     requestID,
		SearchResults: state.SearchResults,
		Extraction:    state.Extraction,
		Errors:        append([]string{}, state.Errors...),
	}
}

// RunVoice transcribes audio and runs the transcript as a query.
func (p *Pipeline) RunVoice(ctx context.Context, projectID string, audio []byte, filename string) (string, *Result, error) {
	if p.transcriber == nil {
		return "", nil, errs.New(errs.KindValidation, "voice search is not configured")
	}
	if len(audio) == 0 {
		return "", nil, errs.New(errs.KindValidation, "audio is empty")
	}
	text, err := p.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", nil, errs.Upstream("transcribing audio", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, errs.New(errs.KindValidation, "no speech recognized in audio")
	}
	return text, p.Run(ctx, projectID, text), nil
}

// step runs one node in isolation. On failure the node's own fields keep
// their previous values and the error is recorded with the stage name.
func (p *Pipeline) step(ctx context.Context, logger *zap.Logger, stage Stage, run node, in State) (out State) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			out, err = in, fmt.Errorf("unexpected failure: %v", r)
		}
		if err != nil {
			out.Errors = out.Errors.With(stageMessages(stage, err)...)
			logger.Warn("stage failed", zap.String("stage", string(stage)), zap.Error(err))
		}
		p.metrics.ObserveStage(string(stage), time.Since(start), err != nil)
		logger.Debug("stage done", zap.String("stage", string(stage)), zap.Duration("duration", time.Since(start)))
	}()

	out, err = run(ctx, in)
	return out
}

func stageMessages(stage Stage, err error) []string {
	var list []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		list = joined.Unwrap()
	} else {
		list = []error{err}
	}
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		msgs = append(msgs, fmt.Sprintf("%s: %v", stage, e))
	}
	return msgs
}

// next is the transition function of the state machine.
func next(stage Stage, s State) Stage {
	switch stage {
	case StageFetchKnownPeople:
		return StageInterpretQuery
	case StageInterpretQuery:
		if hasPeople(s) {
			return StageResolvePeople
		}
		return StageResolveScene
	case StageResolvePeople:
		return StageResolveScene
	case StageResolveScene:
		if s.PeopleResult == nil && s.SceneResult == nil && s.Failed() {
			return StageDone
		}
		return StageComposeResults
	default:
		return StageDone
	}
}

func hasPeople(s State) bool {
	return s.Extraction.HasPeople()
}

func (p *Pipeline) fetchKnownPeople(ctx context.Context, s State) (State, error) {
	names, err := p.known.ListPersonNames(ctx, s.ProjectID)
	if err != nil {
		return s, errs.Upstream("listing album names", err)
	}
	if len(names) == 0 {
		return s, errs.ErrNoKnownPeople
	}
	s.PeopleNames = names
	return s, nil
}

func (p *Pipeline) interpretQuery(ctx context.Context, s State) (State, error) {
	ext, err := p.interpreter.Interpret(ctx, s.QueryStr, s.PeopleNames)
	if err != nil {
		return s, err
	}
	s.Extraction = ext
	if len(ext.Errors) == 0 {
		return s, nil
	}
	reported := make([]error, len(ext.Errors))
	for i, msg := range ext.Errors {
		reported[i] = errors.New(msg)
	}
	return s, errors.Join(reported...)
}

func (p *Pipeline) resolvePeople(ctx context.Context, s State) (State, error) {
	set, err := p.people.Resolve(ctx, s.ProjectID, s.Extraction.People)
	if err != nil {
		return s, err
	}
	s.PeopleResult = set
	return s, nil
}

func (p *Pipeline) resolveScene(ctx context.Context, s State) (State, error) {
	if strings.TrimSpace(s.Extraction.Scene) == "" {
		return s, nil
	}
	res, err := p.scene.Resolve(ctx, s.ProjectID, s.Extraction.Scene)
	if err != nil {
		return s, err
	}
	s.SceneResult = res.ImageSet()
	return s, nil
}

func (p *Pipeline) composeResults(ctx context.Context, s State) (State, error) {
	combined, err := compose.Combine(s.PeopleResult, s.SceneResult)
	if err != nil {
		return s, err
	}
	s.SearchResults = combined
	return s, nil
}
