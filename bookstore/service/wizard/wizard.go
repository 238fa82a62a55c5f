// Package wizard drives the administrator's multi-step data entry. Every flow is a row in a
// table of steps, validators and a commit action; sessions live in a core/state Store.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/metrics"
	"github.com/m3rciful/bookbot/bookstore/notify"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/core/logger"
	"github.com/m3rciful/bookbot/core/state"
)

const component = "service.wizard"

// Button tags understood by Handle.
const (
	TagLanguage = "wlang"
	TagSkip     = "wskip"
	TagCancel   = "wcancel"
)

// InputKind classifies an inbound event.
type InputKind int

const (
	InputText InputKind = iota
	InputPhoto
	InputDocument
	InputButton
)

// Input is one inbound event as seen by a wizard step.
type Input struct {
	Kind    InputKind
	Text    string
	Ref     string
	Tag     string
	Payload string
}

// Reply is what the actor should see after a wizard call.
type Reply struct {
	Text    string
	Actions []notify.Action
	Flow    state.Flow
	Step    state.Step
	// Done is set once the flow committed or was cancelled.
	Done bool
	// Replaced names the flow discarded by Start, if any.
	Replaced state.Flow
}

// Options wires the engine.
type Options struct {
	Sessions state.Store
	Access   *access.Service
	Items    storage.Catalog
	Settings storage.Settings
	Gateway  notify.Gateway

	DefaultCurrency string
	// Labels maps each language to its button label.
	Labels map[domain.Language]string
}

// Engine runs the wizard flows.
type Engine struct {
	sessions        state.Store
	access          *access.Service
	items           storage.Catalog
	settings        storage.Settings
	gateway         notify.Gateway
	defaultCurrency string
	labels          map[domain.Language]string
}

// New constructs an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		sessions:        opts.Sessions,
		access:          opts.Access,
		items:           opts.Items,
		settings:        opts.Settings,
		gateway:         opts.Gateway,
		defaultCurrency: strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency)),
		labels: map[domain.Language]string{
			domain.LanguagePrimary:   "Primary",
			domain.LanguageSecondary: "Secondary",
		},
	}
	if e.sessions == nil {
		e.sessions = state.NewMemoryStore()
	}
	if e.gateway == nil {
		e.gateway = notify.Discard{}
	}
	if e.defaultCurrency == "" {
		e.defaultCurrency = "INR"
	}
	for lang, label := range opts.Labels {
		if strings.TrimSpace(label) != "" {
			e.labels[lang] = label
		}
	}
	return e
}

// InProgress reports whether the actor has an active session.
func (e *Engine) InProgress(actorID int64) bool {
	_, ok := e.sessions.Get(actorID)
	return ok
}

// Session returns a copy of the actor's active session.
func (e *Engine) Session(actorID int64) (*state.Session, bool) {
	return e.sessions.Get(actorID)
}

// Start opens a flow for the administrator. An active session of any flow is discarded and
// reported in Reply.Replaced.
func (e *Engine) Start(ctx context.Context, actorID int64, entry Entry) (*Reply, error) {
	if err := e.access.Require(ctx, actorID); err != nil {
		return nil, err
	}
	def, ok := flows[entry.Flow]
	if !ok {
		return nil, fmt.Errorf("wizard: unknown flow %q", entry.Flow)
	}
	step, ok := def.steps[entry.Step]
	if !ok {
		return nil, fmt.Errorf("wizard: flow %s has no step %q", entry.Flow, entry.Step)
	}
	if err := e.checkEntry(ctx, entry); err != nil {
		return nil, err
	}

	sess, replaced := e.sessions.Start(actorID, entry.Flow, entry.Step)
	for k, v := range entry.Fields {
		sess.SetField(k, v)
	}
	if err := e.sessions.Save(sess); err != nil {
		return nil, fmt.Errorf("wizard: save session: %w", err)
	}

	reply := &Reply{
		Text:    step.prompt(e, sess),
		Actions: step.actions(e),
		Flow:    sess.Flow,
		Step:    sess.Step,
	}
	if replaced != nil {
		reply.Replaced = replaced.Flow
		metrics.RecordWizard(string(replaced.Flow), "replaced")
		logger.Info(ctx, component, "wizard.replaced",
			slog.Int64("actor_id", actorID),
			slog.String("replaced_flow", string(replaced.Flow)),
			slog.String("step", string(replaced.Step)),
			slog.String("flow", string(entry.Flow)),
			slog.Int("count", len(replaced.Fields)),
		)
		reply.Text = fmt.Sprintf("⚠️ Your unfinished %s was discarded.\n\n%s", flowName(replaced.Flow), reply.Text)
	}
	metrics.RecordWizard(string(entry.Flow), "started")
	logger.Info(ctx, component, "wizard.start",
		slog.String("status", "ok"),
		slog.Int64("actor_id", actorID),
		slog.String("flow", string(entry.Flow)),
		slog.String("step", string(entry.Step)),
	)
	return reply, nil
}

// Run starts a flow and immediately feeds it one input, as for "setpayment <address>".
func (e *Engine) Run(ctx context.Context, actorID int64, entry Entry, in Input) (*Reply, error) {
	started, err := e.Start(ctx, actorID, entry)
	if err != nil {
		return nil, err
	}
	reply, err := e.Handle(ctx, actorID, in)
	if reply != nil && started.Replaced != "" {
		reply.Replaced = started.Replaced
		reply.Text = fmt.Sprintf("⚠️ Your unfinished %s was discarded.\n\n%s", flowName(started.Replaced), reply.Text)
	}
	return reply, err
}

// Handle feeds one input to the actor's active step. Malformed input leaves the session on
// the same step and returns both a re-prompt Reply and an error matching domain.ErrInvalidInput.
// A TagCancel button is the same as Cancel.
func (e *Engine) Handle(ctx context.Context, actorID int64, in Input) (*Reply, error) {
	if in.Kind == InputButton && in.Tag == TagCancel {
		return e.Cancel(ctx, actorID)
	}
	sess, ok := e.sessions.Get(actorID)
	if !ok {
		return nil, domain.ErrNoSession
	}
	if err := e.access.Require(ctx, actorID); err != nil {
		return nil, err
	}
	def := flows[sess.Flow]
	step, ok := def.steps[sess.Step]
	if !ok {
		e.sessions.Clear(actorID)
		return nil, fmt.Errorf("wizard: session in unknown step %s/%s", sess.Flow, sess.Step)
	}

	var (
		next state.Step
		err  error
	)
	if in.Kind == InputButton && in.Tag == TagSkip {
		if step.skipTo == "" {
			err = domain.Invalid(string(sess.Step), "this step cannot be skipped")
		} else {
			next = step.skipTo
		}
	} else {
		next, err = step.accept(e, sess, in)
	}
	if err != nil {
		return e.reprompt(ctx, sess, step, err)
	}

	if next == StepCommit {
		return e.commit(ctx, sess, def, step)
	}

	sess.Step = next
	if err := e.sessions.Save(sess); err != nil {
		if errors.Is(err, state.ErrStale) {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("wizard: save session: %w", err)
	}
	nextDef := def.steps[next]
	logger.Debug(ctx, component, "wizard.step",
		slog.Int64("actor_id", actorID),
		slog.String("flow", string(sess.Flow)),
		slog.String("step", string(next)),
	)
	return &Reply{
		Text:    nextDef.prompt(e, sess),
		Actions: nextDef.actions(e),
		Flow:    sess.Flow,
		Step:    next,
	}, nil
}

func (e *Engine) commit(ctx context.Context, sess *state.Session, def flowDef, step stepDef) (*Reply, error) {
	msg, err := def.commit(ctx, e, sess)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return e.reprompt(ctx, sess, step, err)
		}
		logger.Error(ctx, component, "wizard.commit",
			slog.String("status", "fail"),
			slog.Int64("actor_id", sess.ActorID),
			slog.String("flow", string(sess.Flow)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	e.sessions.Clear(sess.ActorID)
	metrics.RecordWizard(string(sess.Flow), "committed")
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int64("actor_id", sess.ActorID),
		slog.String("flow", string(sess.Flow)),
	}
	if id := sess.Field(fieldItemID); id != "" {
		attrs = append(attrs, slog.String("item_id", id))
	}
	logger.Info(ctx, component, "wizard.commit", attrs...)
	return &Reply{Text: msg, Flow: sess.Flow, Step: StepCommit, Done: true}, nil
}

func (e *Engine) reprompt(ctx context.Context, sess *state.Session, step stepDef, cause error) (*Reply, error) {
	metrics.RecordWizard(string(sess.Flow), "rejected_input")
	logger.Info(ctx, component, "wizard.input",
		slog.String("status", "skip"),
		slog.Int64("actor_id", sess.ActorID),
		slog.String("flow", string(sess.Flow)),
		slog.String("step", string(sess.Step)),
		slog.String("err_code", domain.ErrInvalidInput.Code()),
	)
	reason := cause.Error()
	var ie *domain.InputError
	if errors.As(cause, &ie) {
		reason = ie.Reason
	}
	return &Reply{
		Text:    fmt.Sprintf("⚠️ %s\n\n%s", capitalize(reason), step.prompt(e, sess)),
		Actions: step.actions(e),
		Flow:    sess.Flow,
		Step:    sess.Step,
	}, fmt.Errorf("wizard %s/%s: %w", sess.Flow, sess.Step, cause)
}

// Cancel destroys the actor's session without persisting anything.
func (e *Engine) Cancel(ctx context.Context, actorID int64) (*Reply, error) {
	sess, ok := e.sessions.Clear(actorID)
	if !ok {
		return nil, domain.ErrNoSession
	}
	metrics.RecordWizard(string(sess.Flow), "cancelled")
	logger.Info(ctx, component, "wizard.cancel",
		slog.Int64("actor_id", actorID),
		slog.String("flow", string(sess.Flow)),
		slog.String("step", string(sess.Step)),
	)
	return &Reply{Text: fmt.Sprintf("✖️ %s cancelled. Nothing was saved.", capitalize(flowName(sess.Flow))), Flow: sess.Flow, Step: sess.Step, Done: true}, nil
}

// Sweep drops idle sessions and tells their owners. It returns the number removed.
func (e *Engine) Sweep(ctx context.Context) int {
	expired := e.sessions.Expire()
	for _, sess := range expired {
		metrics.RecordWizard(string(sess.Flow), "expired")
		logger.Info(ctx, component, "session.expired",
			slog.Int64("actor_id", sess.ActorID),
			slog.String("flow", string(sess.Flow)),
			slog.String("step", string(sess.Step)),
		)
		text := fmt.Sprintf("⌛ Your %s expired after inactivity. Nothing was saved.", flowName(sess.Flow))
		if err := e.gateway.SendText(ctx, sess.ActorID, text); err != nil {
			metrics.RecordDeliveryFailure("session_expired")
		}
	}
	return len(expired)
}

func (e *Engine) checkEntry(ctx context.Context, entry Entry) error {
	raw, ok := entry.Fields[fieldItemID]
	if !ok {
		return nil
	}
	var id int64
	if _, err := fmt.Sscan(raw, &id); err != nil || id <= 0 {
		return domain.Invalid(fieldItemID, "bad item id %q", raw)
	}
	if _, err := e.items.GetItem(ctx, id); err != nil {
		return err
	}
	return nil
}

func (e *Engine) parseLanguage(raw string) (domain.Language, bool) {
	raw = strings.TrimSpace(raw)
	if lang, ok := domain.ParseLanguage(raw); ok {
		return lang, true
	}
	switch raw {
	case "1":
		return domain.LanguagePrimary, true
	case "2":
		return domain.LanguageSecondary, true
	}
	for lang, label := range e.labels {
		if strings.EqualFold(strings.TrimSpace(label), raw) {
			return lang, true
		}
	}
	return "", false
}

func flowName(f state.Flow) string {
	switch f {
	case FlowAddItem:
		return "new book entry"
	case FlowSetPayment:
		return "payment setup"
	case FlowUpdateItem:
		return "book update"
	}
	return strings.ToLower(string(f))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
