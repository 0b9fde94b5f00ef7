// Package pipeline runs the generation, classification, persistence and
// verification steps for one task and records the outcome.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/classify"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/generation"
	"github.com/rhuss/codesmith/pkg/history"
	"github.com/rhuss/codesmith/pkg/provider"
	"github.com/rhuss/codesmith/pkg/sandbox"
)

// DefaultBackend is used when neither the task nor the configuration
// names a backend.
const DefaultBackend = string(provider.BackendOpenAI)

// Backends resolves backend names to Completers and models.
// *provider.Registry implements it.
type Backends interface {
	Completer(name, apiKey string) (provider.Completer, error)
	Model(b provider.Backend, explicit string) string
}

var _ Backends = (*provider.Registry)(nil)

// Result is the outcome of one pipeline invocation.
type Result struct {
	ID      string
	Ref     api.StoredArtifactRef
	Verdict api.ExecutionVerdict
}

// Pipeline wires the backends, classifier, artifact store, sandbox and
// history together. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	backends   Backends
	classifier classify.Classifier
	store      artifact.Store
	executor   sandbox.Executor
	history    history.Store

	defaultBackend string
	verifyLang     api.Language
	validation     api.ValidationConfig
	clock          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory records every completed invocation in h.
func WithHistory(h history.Store) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithDefaultBackend sets the backend used when a task names none.
func WithDefaultBackend(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.defaultBackend = name
		}
	}
}

// WithDefaultVerifyLanguage sets the language assumed by Verify when the
// caller names none. An empty lang classifies the code instead.
func WithDefaultVerifyLanguage(lang api.Language) Option {
	return func(p *Pipeline) { p.verifyLang = lang }
}

// WithClassifier replaces the heuristic classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithValidation sets request size limits.
func WithValidation(cfg api.ValidationConfig) Option {
	return func(p *Pipeline) { p.validation = cfg }
}

// WithClock sets the artifact timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New creates a Pipeline.
func New(backends Backends, store artifact.Store, executor sandbox.Executor, opts ...Option) *Pipeline {
	p := &Pipeline{
		backends:       backends,
		classifier:     classify.Heuristic{},
		store:          store,
		executor:       executor,
		defaultBackend: DefaultBackend,
		verifyLang:     api.LanguagePython,
		validation:     api.DefaultValidationConfig(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultBackend returns the backend used when a task names none.
func (p *Pipeline) DefaultBackend() string { return p.defaultBackend }

// History returns the configured history store, or nil.
func (p *Pipeline) History() history.Store { return p.history }

// GenerateAndVerify generates code for task, persists it, and executes it.
// Faults, timeouts and unsupported languages are reported in the verdict;
// the error covers validation, configuration, backend and storage failures.
func (p *Pipeline) GenerateAndVerify(ctx context.Context, task api.GenerationTask) (api.StoredArtifactRef, api.ExecutionVerdict, error) {
	res, err := p.Run(ctx, task)
	if err != nil {
		return api.StoredArtifactRef{}, api.ExecutionVerdict{}, err
	}
	return res.Ref, res.Verdict, nil
}

// Run is GenerateAndVerify returning the history record ID as well.
func (p *Pipeline) Run(ctx context.Context, task api.GenerationTask) (*Result, error) {
	if err := api.ValidateTask(task, p.validation); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(task.Backend)
	if name == "" {
		name = p.defaultBackend
	}
	completer, err := p.backends.Completer(name, task.APIKey)
	if err != nil {
		return nil, err
	}
	backend := provider.Backend(completer.Name())
	task.Backend = string(backend)
	task.Model = p.backends.Model(backend, task.Model)

	debug.Log("pipeline", "generate", "backend", task.Backend, "model", task.Model, "task_len", len(task.Task))

	gen := &generation.Generator{
		Completer:  completer,
		Classifier: p.classifier,
		Store:      p.store,
		Clock:      p.clock,
	}
	ref, err := gen.Generate(ctx, task)
	if err != nil {
		return nil, err
	}

	verdict := p.executor.Execute(ctx, ref.Artifact.Code, ref.Artifact.Language)

	res := &Result{ID: api.NewVerificationID(), Ref: ref, Verdict: verdict}
	p.record(ctx, &history.Record{
		ID:        res.ID,
		Kind:      history.KindGenerate,
		Backend:   ref.Artifact.Backend,
		Model:     ref.Artifact.Model,
		Task:      task.Task,
		Language:  ref.Artifact.Language,
		Path:      ref.Path,
		Verdict:   verdict,
		CreatedAt: ref.Artifact.CreatedAt,
	})
	return res, nil
}

// VerifyOnly executes caller-supplied code. An empty lang runs the code as
// the default verify language (Python unless configured otherwise).
func (p *Pipeline) VerifyOnly(ctx context.Context, code string, lang api.Language) (api.ExecutionVerdict, error) {
	res, err := p.Verify(ctx, code, lang)
	if err != nil {
		return api.ExecutionVerdict{}, err
	}
	return res.Verdict, nil
}

// Verify is VerifyOnly returning the history record ID as well.
func (p *Pipeline) Verify(ctx context.Context, code string, lang api.Language) (*Result, error) {
	if err := api.ValidateVerifyRequest(&api.VerifyRequest{Code: code, Language: string(lang)}, p.validation); err != nil {
		return nil, err
	}
	switch {
	case lang != "":
		lang = api.ParseLanguage(string(lang))
	case p.verifyLang != "":
		lang = p.verifyLang
	default:
		lang = p.classifier.Classify(code)
	}

	debug.Log("pipeline", "verify", "language", lang, "code_len", len(code))

	verdict := p.executor.Execute(ctx, code, lang)

	res := &Result{
		ID: api.NewVerificationID(),
		Ref: api.StoredArtifactRef{Artifact: api.GeneratedArtifact{
			Code:      code,
			Language:  lang,
			CreatedAt: p.clock(),
		}},
		Verdict: verdict,
	}
	p.record(ctx, &history.Record{
		ID:        res.ID,
		Kind:      history.KindVerify,
		Language:  lang,
		Verdict:   verdict,
		CreatedAt: res.Ref.Artifact.CreatedAt,
	})
	return res, nil
}

// record saves rec when history is enabled. Failures are logged; the
// caller still gets its verdict.
func (p *Pipeline) record(ctx context.Context, rec *history.Record) {
	if p.history == nil {
		return
	}
	rec.Tenant = history.GetTenant(ctx)
	// The verdict is already final; a cancelled request should not lose it.
	if err := p.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to record verification", "id", rec.ID, "kind", rec.Kind, "error", err)
	}
}
