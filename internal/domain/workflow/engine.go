package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"procura/internal/core/apperror"
)

var tracer = otel.Tracer("procura/workflow")

// Engine is the in-process Navigator. Compiled routing rules are cached per
// definition id and version.
type Engine struct {
	env   *cel.Env
	rules sync.Map // cacheKey -> []compiledRule
}

var _ Navigator = (*Engine)(nil)

// NewEngine creates a navigator engine.
func NewEngine() (*Engine, error) {
	env, err := newConditionEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &Engine{env: env}, nil
}

// InitialStage implements Navigator.
func (e *Engine) InitialStage(ctx context.Context, def *Definition) (*StageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(def.Data.Stages) == 0 {
		return nil, apperror.NewInvalidArgument(fmt.Sprintf("workflow %q has no stages", def.Name))
	}
	info := NewStageInfo(&def.Data.Stages[0])
	return &info, nil
}

// Forward implements Navigator.
func (e *Engine) Forward(ctx context.Context, def *Definition, current, previous string, req RequestData) (*Navigation, error) {
	ctx, span := e.start(ctx, "workflow.Forward", def, attribute.String("workflow.stage", current))
	defer span.End()

	nav, err := e.forward(ctx, def, current, previous, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return nav, err
}

func (e *Engine) forward(ctx context.Context, def *Definition, current, previous string, req RequestData) (*Navigation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if previous != "" && current == "" {
		return nil, apperror.NewInvalidArgument("current stage is required when previous stage is given")
	}
	if current == "" {
		first, err := e.InitialStage(ctx, def)
		if err != nil {
			return nil, err
		}
		return e.navigationAt(def, first.Name, "", req)
	}
	if def.Stage(current) == nil {
		return nil, stageNotFound(def, current)
	}

	next, err := e.nextStep(def, current, req)
	if err != nil {
		return nil, err
	}
	if next == "" {
		return nil, apperror.NewInvalidArgument(fmt.Sprintf("no next step available from stage %q", current))
	}
	return e.navigationAt(def, next, current, req)
}

// Back implements Navigator.
func (e *Engine) Back(ctx context.Context, def *Definition, history []string, current, target string, req RequestData) (*Navigation, error) {
	ctx, span := e.start(ctx, "workflow.Back", def,
		attribute.String("workflow.stage", current),
		attribute.String("workflow.target", target),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if def.Stage(target) == nil {
		err := apperror.NewInvalidArgument(fmt.Sprintf("stage %q does not exist in workflow definition", target))
		span.RecordError(err)
		return nil, err
	}
	if len(history) > 0 && !contains(AvailablePreviousStages(history, current), target) {
		err := apperror.NewInvalidArgument(fmt.Sprintf("stage %q not found in history before current position", target))
		span.RecordError(err)
		return nil, err
	}
	return e.navigationAt(def, target, "", req)
}

// StageRole implements Navigator.
func (e *Engine) StageRole(ctx context.Context, def *Definition, stage string) (Role, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := def.Stage(stage)
	if s == nil {
		return "", stageNotFound(def, stage)
	}
	return s.Role, nil
}

func (e *Engine) navigationAt(def *Definition, stage, previous string, req RequestData) (*Navigation, error) {
	s := def.Stage(stage)
	if s == nil {
		return nil, stageNotFound(def, stage)
	}
	nav := &Navigation{
		PreviousStep: previous,
		CurrentStage: NewStageInfo(s),
	}

	next, err := e.nextStep(def, stage, req)
	if err != nil {
		return nil, err
	}
	nav.NextStep = next
	if ns := def.Stage(next); ns != nil {
		info := NewStageInfo(ns)
		nav.NextStage = &info
	}
	return nav, nil
}

// nextStep applies the first matching NEXT_STAGE rule for stage, falling back
// to the next stage in definition order. The last stage has no next step.
func (e *Engine) nextStep(def *Definition, stage string, req RequestData) (string, error) {
	rules, err := e.compiled(def)
	if err != nil {
		return "", err
	}

	strs, nums := req.split()
	for _, r := range rules {
		if r.rule.TriggerStage != stage || r.rule.Action.Type != RuleActionNextStage {
			continue
		}
		ok, err := r.matches(strs, nums)
		if err != nil {
			return "", err
		}
		if ok {
			return r.rule.Action.Parameters.TargetStage, nil
		}
	}

	idx := def.StageIndex(stage)
	if idx >= 0 && idx < len(def.Data.Stages)-1 {
		return def.Data.Stages[idx+1].Name, nil
	}
	return "", nil
}

func (e *Engine) compiled(def *Definition) ([]compiledRule, error) {
	key := def.cacheKey()
	if v, ok := e.rules.Load(key); ok {
		return v.([]compiledRule), nil
	}
	rules, err := compileRules(e.env, def.Data.RoutingRules)
	if err != nil {
		return nil, apperror.NewInvalidArgument("invalid routing rule").WithCause(err)
	}
	e.rules.Store(key, rules)
	return rules, nil
}

func (e *Engine) start(ctx context.Context, name string, def *Definition, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("workflow.id", def.ID.String()))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func stageNotFound(def *Definition, stage string) error {
	return apperror.NewInvalidArgument(fmt.Sprintf("stage %q not found in workflow %q", stage, def.Name))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
