package disambiguation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"disambiguator/models"
)

// Operation labels for the resolution histogram.
const (
	OpStart        = "start"
	OpChoice       = "choice"
	OpConfirmation = "confirmation"
	OpManualInput  = "manual_input"
)

// LastResortText is sent when the rules or the session store are unavailable.
const LastResortText = "Desculpe, tivemos um problema. Pode tentar novamente?"

// Orchestrator is the disambiguation state machine. It holds no per-session
// state: every call receives the session value and returns the next one.
type Orchestrator struct {
	rules     *RulesStore
	retriever *Retriever
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator wires the state machine. A nil metrics sink is replaced by NopMetrics.
func NewOrchestrator(rules *RulesStore, retriever *Retriever, metrics Metrics, logger *zap.Logger) *Orchestrator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{rules: rules, retriever: retriever, metrics: metrics, logger: logger, now: time.Now}
}

// Normalize exposes the active normalizer.
func (o *Orchestrator) Normalize(text string) string {
	return o.rules.Current().Normalizer.Normalize(text)
}

// IsAmbiguous exposes the active category patterns.
func (o *Orchestrator) IsAmbiguous(text string) bool {
	return o.rules.Current().Classifier.IsAmbiguous(text)
}

// IsNumericChoice exposes the active numeric-choice patterns.
func (o *Orchestrator) IsNumericChoice(text string) bool {
	return o.rules.Current().Classifier.IsNumericChoice(text)
}

// DryRun runs StartDisambiguation without writing the cache or emitting metrics.
func (o *Orchestrator) DryRun(ctx context.Context, input string, dctx models.DisambiguationContext) models.DisambiguationResult {
	cp := *o
	cp.retriever = o.retriever.ReadOnly()
	cp.metrics = NopMetrics{}
	cp.logger = o.logger.With(zap.Bool("dryRun", true))
	return cp.StartDisambiguation(ctx, input, dctx)
}

// StartDisambiguation resolves the first turn: category lookup for ambiguous
// input, similarity search otherwise, then composes the prompt.
func (o *Orchestrator) StartDisambiguation(ctx context.Context, input string, dctx models.DisambiguationContext) (res models.DisambiguationResult) {
	rules := o.rules.Current()
	defer o.observe(OpStart, o.now())
	defer func() {
		if p := recover(); p != nil {
			res = o.recovered(OpStart, rules, dctx, p)
		}
	}()

	dctx.OriginalInput = strings.TrimSpace(input)
	dctx.NormalizedInput = rules.Normalizer.Normalize(input)
	if dctx.ReturnState == "" {
		dctx.ReturnState = rules.Limits.DefaultReturnState
	}
	logger := o.logger.With(zap.String("sessionId", dctx.SessionID), zap.String("userId", dctx.UserID))

	var options []models.ServiceOption
	if dctx.NormalizedInput != "" {
		ctx, cancel := context.WithTimeout(ctx, rules.Limits.QueryTimeout)
		defer cancel()

		params := ParamsFromRules(rules)
		var err error
		if rules.Classifier.IsAmbiguous(input) {
			dctx.Category = rules.Classifier.Category(input)
			options, err = o.retriever.TopByCategory(ctx, dctx.Category, params)
		} else {
			options, err = o.retriever.SearchByText(ctx, dctx.NormalizedInput, params)
		}
		if err != nil {
			logger.Error("candidate retrieval failed", zap.String("input", dctx.NormalizedInput), zap.Error(err))
			o.metrics.FallbackTriggered(ReasonRetrievalError)
			return o.catalogError(rules, dctx, err)
		}
	}

	comp := NewComposer(rules.Renderer, rules.Limits.MaxOptions, o.logger).Compose(options, dctx.OriginalInput)
	options = truncate(options, rules.Limits.MaxOptions)
	session := models.NewDisambiguationSession(dctx, comp.NextState, options, o.now(), rules.Cache.SessionTTL)

	if comp.NextState == models.StateFallbackManualInput {
		o.metrics.FallbackTriggered(ReasonNoOptions)
	} else {
		o.metrics.PromptShown(dctx.Category, len(options))
	}
	logger.Debug("disambiguation started", zap.String("state", string(comp.NextState)),
		zap.String("category", dctx.Category), zap.Int("options", len(options)))

	return models.DisambiguationResult{
		Success:      true,
		NextState:    string(comp.NextState),
		ResponseText: comp.ResponseText,
		Session:      session,
	}
}

// HandleTurn dispatches a follow-up turn by the session's state.
func (o *Orchestrator) HandleTurn(ctx context.Context, input string, session *models.DisambiguationSession) models.DisambiguationResult {
	if session == nil {
		return o.invalidSession(o.rules.Current(), nil, "no session")
	}
	switch session.State {
	case models.StateCatalogWaitChoice:
		return o.ProcessChoice(ctx, input, session)
	case models.StateCatalogWaitConfirmation:
		return o.ProcessConfirmation(ctx, input, session)
	case models.StateFallbackManualInput:
		return o.ProcessManualInput(ctx, input, session)
	}
	return o.invalidSession(o.rules.Current(), session, "state "+string(session.State)+" does not take input")
}

// ProcessChoice handles a turn in CATALOG_WAIT_CHOICE.
func (o *Orchestrator) ProcessChoice(_ context.Context, input string, session *models.DisambiguationSession) (res models.DisambiguationResult) {
	rules := o.rules.Current()
	defer o.observe(OpChoice, o.now())
	defer func() {
		if p := recover(); p != nil {
			res = o.recovered(OpChoice, rules, sessionContext(session), p)
		}
	}()

	if session == nil || session.State != models.StateCatalogWaitChoice || len(session.Options) == 0 {
		return o.invalidSession(rules, session, "not waiting for a choice")
	}
	if session.AttemptCount >= rules.Limits.MaxAttempts {
		return o.attemptsExhausted(rules, session)
	}

	idx, ok := rules.Classifier.ParseChoice(input)
	lo, hi := acceptedRange(rules.Limits, len(session.Options))
	if !ok || idx < lo || idx > hi {
		attempts := session.AttemptCount + 1
		o.logger.Debug("invalid choice", zap.String("sessionId", session.Context.SessionID),
			zap.String("input", input), zap.Int("attempts", attempts))
		return models.DisambiguationResult{
			NextState: string(models.StateCatalogWaitChoice),
			ResponseText: o.render(rules, TplInvalidChoice, RenderContext{
				Input: input, Options: session.Options, Attempts: attempts, MaxAttempts: rules.Limits.MaxAttempts,
				MaxChoice: hi,
			}),
			ErrorCode: CodeInvalidChoice,
			Error:     newValidationError(CodeInvalidChoice, fmt.Sprintf("%q is not an option between %d and %d", input, lo, hi)),
			Session:   session.WithState(models.StateCatalogWaitChoice, attempts),
		}
	}

	o.metrics.ChoiceReceived(idx)
	return o.persistSelection(rules, session, session.Options[idx-1])
}

// ProcessConfirmation handles a turn in CATALOG_WAIT_CONFIRMATION.
func (o *Orchestrator) ProcessConfirmation(_ context.Context, input string, session *models.DisambiguationSession) (res models.DisambiguationResult) {
	rules := o.rules.Current()
	defer o.observe(OpConfirmation, o.now())
	defer func() {
		if p := recover(); p != nil {
			res = o.recovered(OpConfirmation, rules, sessionContext(session), p)
		}
	}()

	if session == nil || session.State != models.StateCatalogWaitConfirmation || len(session.Options) == 0 {
		return o.invalidSession(rules, session, "not waiting for a confirmation")
	}
	if session.AttemptCount >= rules.Limits.MaxAttempts {
		return o.attemptsExhausted(rules, session)
	}

	switch {
	case rules.Classifier.Is(input, LabelAffirmative):
		return o.persistSelection(rules, session, session.Options[0])
	case rules.Classifier.Is(input, LabelNegative):
		o.metrics.FallbackTriggered(ReasonUserDeclined)
		return models.DisambiguationResult{
			Success:      true,
			NextState:    string(models.StateFallbackManualInput),
			ResponseText: o.render(rules, TplManualPrompt, RenderContext{Input: input}),
			Session:      session.WithState(models.StateFallbackManualInput, session.AttemptCount),
		}
	}

	attempts := session.AttemptCount + 1
	return models.DisambiguationResult{
		NextState: string(models.StateCatalogWaitConfirmation),
		ResponseText: o.render(rules, TplConfirmReprompt, RenderContext{
			Input: input, Options: session.Options, Attempts: attempts, MaxAttempts: rules.Limits.MaxAttempts,
		}),
		ErrorCode: CodeUnconfirmed,
		Error:     newValidationError(CodeUnconfirmed, fmt.Sprintf("%q is neither a yes nor a no", input)),
		Session:   session.WithState(models.StateCatalogWaitConfirmation, attempts),
	}
}

// ProcessManualInput handles a turn in FALLBACK_MANUAL_INPUT. Any non-empty
// text is accepted as the service name.
func (o *Orchestrator) ProcessManualInput(_ context.Context, input string, session *models.DisambiguationSession) (res models.DisambiguationResult) {
	rules := o.rules.Current()
	defer o.observe(OpManualInput, o.now())
	defer func() {
		if p := recover(); p != nil {
			res = o.recovered(OpManualInput, rules, sessionContext(session), p)
		}
	}()

	if session == nil || session.State != models.StateFallbackManualInput {
		return o.invalidSession(rules, session, "not waiting for manual input")
	}
	name := strings.TrimSpace(input)
	if name == "" {
		return models.DisambiguationResult{
			NextState:    string(models.StateFallbackManualInput),
			ResponseText: o.render(rules, TplManualPrompt, RenderContext{}),
			ErrorCode:    CodeEmptyInput,
			Error:        newValidationError(CodeEmptyInput, "manual service name is empty"),
			Session:      session,
		}
	}

	o.metrics.SelectionPersisted(SourceManual)
	return models.DisambiguationResult{
		Success:      true,
		NextState:    returnState(rules, session.Context),
		ResponseText: o.render(rules, TplManualAck, RenderContext{Input: name}),
		SlotsToSet: map[string]any{
			models.SlotServiceName:   name,
			models.SlotServiceNorm:   rules.Normalizer.Normalize(name),
			models.SlotManualService: true,
		},
		Completed: true,
	}
}

func (o *Orchestrator) persistSelection(rules *Rules, session *models.DisambiguationSession, opt models.ServiceOption) models.DisambiguationResult {
	o.metrics.SelectionPersisted(SourceCatalog)
	o.logger.Info("catalog service selected", zap.String("sessionId", session.Context.SessionID),
		zap.String("serviceId", opt.ID), zap.Int("attempts", session.AttemptCount))
	return models.DisambiguationResult{
		Success:      true,
		NextState:    returnState(rules, session.Context),
		ResponseText: o.render(rules, TplPersisted, RenderContext{Input: session.Context.OriginalInput, Options: []models.ServiceOption{opt}}),
		SlotsToSet: map[string]any{
			models.SlotServiceID:       opt.ID,
			models.SlotServiceName:     opt.Name,
			models.SlotServiceNorm:     opt.NormalizedName,
			models.SlotProfessionalID:  opt.ProfessionalID,
			models.SlotServicePrice:    opt.Price,
			models.SlotServiceDuration: opt.DurationMinutes,
			models.SlotServiceCategory: opt.Category,
		},
		Completed: true,
	}
}

func (o *Orchestrator) attemptsExhausted(rules *Rules, session *models.DisambiguationSession) models.DisambiguationResult {
	o.metrics.FallbackTriggered(ReasonAttemptsExhausted)
	o.logger.Info("disambiguation attempts exhausted", zap.String("sessionId", session.Context.SessionID),
		zap.Int("attempts", session.AttemptCount))
	return models.DisambiguationResult{
		NextState: string(models.StateFallbackManualInput),
		ResponseText: o.render(rules, TplAttemptsExhausted, RenderContext{
			Input: session.Context.OriginalInput, Attempts: session.AttemptCount, MaxAttempts: rules.Limits.MaxAttempts,
		}),
		ErrorCode: CodeAttemptsExhausted,
		Error:     newValidationError(CodeAttemptsExhausted, fmt.Sprintf("%d attempts used", session.AttemptCount)),
		Session:   session.WithState(models.StateFallbackManualInput, session.AttemptCount),
	}
}

// invalidSession moves a turn that arrived in the wrong state to manual input.
func (o *Orchestrator) invalidSession(rules *Rules, session *models.DisambiguationSession, reason string) models.DisambiguationResult {
	o.metrics.FallbackTriggered(ReasonInvalidSession)
	dctx := sessionContext(session)
	if dctx.ReturnState == "" {
		dctx.ReturnState = rules.Limits.DefaultReturnState
	}
	o.logger.Warn("turn does not match session", zap.String("sessionId", dctx.SessionID), zap.String("reason", reason))
	return models.DisambiguationResult{
		NextState:    string(models.StateFallbackManualInput),
		ResponseText: o.render(rules, TplManualPrompt, RenderContext{}),
		ErrorCode:    CodeInvalidSession,
		Error:        newValidationError(CodeInvalidSession, reason),
		Session:      models.NewDisambiguationSession(dctx, models.StateFallbackManualInput, nil, o.now(), rules.Cache.SessionTTL),
	}
}

// catalogError is the generic failure response; the user can still type the service name.
func (o *Orchestrator) catalogError(rules *Rules, dctx models.DisambiguationContext, err error) models.DisambiguationResult {
	res := models.DisambiguationResult{
		NextState:    string(models.StateFallbackManualInput),
		ResponseText: LastResortText,
		ErrorCode:    errorCode(err),
		Error:        err,
	}
	if rules == nil {
		return res
	}
	res.ResponseText = o.render(rules, TplCatalogError, RenderContext{Input: dctx.OriginalInput})
	if dctx.ReturnState == "" {
		dctx.ReturnState = rules.Limits.DefaultReturnState
	}
	res.Session = models.NewDisambiguationSession(dctx, models.StateFallbackManualInput, nil, o.now(), rules.Cache.SessionTTL)
	return res
}

func (o *Orchestrator) recovered(op string, rules *Rules, dctx models.DisambiguationContext, p any) models.DisambiguationResult {
	o.logger.Error("disambiguation panic recovered", zap.String("operation", op),
		zap.String("sessionId", dctx.SessionID), zap.Any("panic", p), zap.Stack("stack"))
	o.metrics.FallbackTriggered(ReasonInternalError)
	return o.catalogError(rules, dctx, fmt.Errorf("%s: panic: %v", op, p))
}

func (o *Orchestrator) render(rules *Rules, name string, rc RenderContext) string {
	text, errs := rules.Renderer.Render(name, rc)
	for _, err := range errs {
		o.logger.Warn("template rendered with unresolved placeholder", zap.String("template", name), zap.Error(err))
	}
	return text
}

func (o *Orchestrator) observe(op string, started time.Time) {
	o.metrics.ObserveResolution(op, o.now().Sub(started))
}

// acceptedRange clamps the configured numeric range to the options shown.
func acceptedRange(l Limits, n int) (int, int) {
	lo, hi := max(l.NumericMin, 1), n
	if l.NumericMax > 0 {
		hi = min(hi, l.NumericMax)
	}
	return lo, hi
}

func returnState(rules *Rules, dctx models.DisambiguationContext) string {
	if dctx.ReturnState != "" {
		return dctx.ReturnState
	}
	return rules.Limits.DefaultReturnState
}

func sessionContext(session *models.DisambiguationSession) models.DisambiguationContext {
	if session == nil {
		return models.DisambiguationContext{}
	}
	return session.Context
}
