package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/caseflow/caseflow/pkg/eventbus"
	"github.com/caseflow/caseflow/pkg/events"
	"github.com/caseflow/caseflow/pkg/expr"
	"github.com/caseflow/caseflow/pkg/graph"
	"github.com/caseflow/caseflow/pkg/locks"
	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/otelhelper"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// Engine drives case and work item lifecycle. All mutating operations are
// synchronous: the caller gets the final state or an error, never a
// pending decision. Cascade evaluation is serialized per case through the
// configured locker.
type Engine struct {
	logger    *slog.Logger
	store     persistence.Persistence
	graph     *graph.Model
	evaluator expr.Evaluator
	publisher eventbus.EventPublisher
	locker    locks.Locker
	tracer    trace.Tracer
	policy    CompletionPolicy
}

type Option func(*Engine)

// WithLocker replaces the in-process per-case lock, e.g. with a Redis
// lock for multi-replica deployments.
func WithLocker(locker locks.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func WithPolicy(policy CompletionPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

func NewEngine(
	logger *slog.Logger,
	store persistence.Persistence,
	evaluator expr.Evaluator,
	publisher eventbus.EventPublisher,
	options ...Option,
) *Engine {
	engine := &Engine{
		logger:    logger.With("module", "engine"),
		store:     store,
		graph:     graph.NewModel(store),
		evaluator: evaluator,
		publisher: publisher,
		locker:    locks.NewKeyedMutex(),
		tracer:    noop.NewTracerProvider().Tracer("engine"),
		policy:    AllowAll{},
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// StartCaseParams carries the input of StartCase. ParentWorkItemID spawns
// the case as a sub-workflow of an existing work item: the new case joins
// the parent's family and the parent cannot complete until this case is
// terminal.
type StartCaseParams struct {
	WorkflowSlug     string
	FormSlug         string
	Meta             map[string]any
	Document         map[string]any
	ParentWorkItemID string
	Identity         models.Identity
}

// StartCase instantiates a workflow: it creates a running case and one
// work item batch per start task.
func (e *Engine) StartCase(ctx context.Context, params StartCaseParams) (*models.Case, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_case",
		attribute.String(otelhelper.WorkflowSlugKey, params.WorkflowSlug))
	defer span.End()

	workflow, err := e.store.WorkflowBySlug(ctx, params.WorkflowSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", params.WorkflowSlug, err)
	}

	if !workflow.IsPublished || workflow.IsArchived {
		return nil, fmt.Errorf("workflow %s: %w", workflow.Slug, ErrWorkflowNotStartable)
	}

	if err := e.checkFormAllowed(ctx, workflow, params.FormSlug); err != nil {
		return nil, err
	}

	var parent *models.WorkItem

	familyID := ""

	if params.ParentWorkItemID != "" {
		parent, err = e.store.WorkItemByID(ctx, params.ParentWorkItemID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent work item %s: %w", params.ParentWorkItemID, err)
		}

		parentCase, err := e.store.CaseByID(ctx, parent.CaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent case %s: %w", parent.CaseID, err)
		}

		familyID = parentCase.FamilyID
	}

	kase := models.NewCase(workflow.Slug, familyID)
	kase.FormSlug = params.FormSlug
	kase.Document = params.Document

	if params.Meta != nil {
		kase.Meta = params.Meta
	}

	startTasks, err := e.startableTasks(ctx, workflow.StartTasks)
	if err != nil {
		return nil, err
	}

	workItems, err := e.createWorkItems(ctx, startTasks, kase, params.Identity, nil)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveCase(ctx, kase); err != nil {
		return nil, fmt.Errorf("failed to save case: %w", err)
	}

	for _, workItem := range workItems {
		if err := e.store.SaveWorkItem(ctx, workItem); err != nil {
			return nil, &FactoryInconsistencyError{CaseID: kase.ID, WorkItemID: workItem.ID, Err: err}
		}
	}

	if parent != nil {
		parent.ChildCaseID = kase.ID
		parent.UpdatedAt = time.Now().UTC()

		if err := e.store.SaveWorkItem(ctx, parent); err != nil {
			return nil, fmt.Errorf("failed to bind child case to work item %s: %w", parent.ID, err)
		}
	}

	e.publish(ctx, kase.ID, events.CaseCreated{
		BaseEvent:    events.NewBaseEvent(events.CaseCreatedEvent, kase.ID),
		WorkflowSlug: kase.WorkflowSlug,
		FamilyID:     kase.FamilyID,
		CreatedBy:    params.Identity.Username,
	})

	for _, workItem := range workItems {
		e.publish(ctx, kase.ID, events.NewWorkItemCreated(workItem))
	}

	e.logger.InfoContext(ctx, "Started case",
		"case_id", kase.ID, "workflow", kase.WorkflowSlug, "work_items", len(workItems))

	return kase, nil
}

// CompleteWorkItem marks a work item completed and runs the cascade:
// successor creation when the join is satisfied and the flow expression
// yields tasks, case completion when it yields none. The whole decision
// runs under the case lock; the expression is evaluated before any state
// is committed so an evaluation failure leaves everything untouched.
func (e *Engine) CompleteWorkItem(ctx context.Context, workItemID string, identity models.Identity) (*models.WorkItem, error) {
	return e.closeAndCascade(ctx, workItemID, identity, models.WorkItemStatusCompleted)
}

// SkipWorkItem marks a work item skipped. Skipping continues the cascade
// the same way completion does so a skipped task does not stall the join.
// Unlike completion it does not require a bound child case to be terminal.
func (e *Engine) SkipWorkItem(ctx context.Context, workItemID string, identity models.Identity) (*models.WorkItem, error) {
	return e.closeAndCascade(ctx, workItemID, identity, models.WorkItemStatusSkipped)
}

// CancelWorkItem marks a work item canceled without touching the rest of
// the case. Cancellation never triggers the cascade.
func (e *Engine) CancelWorkItem(ctx context.Context, workItemID string, identity models.Identity) (*models.WorkItem, error) {
	workItem, err := e.store.WorkItemByID(ctx, workItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load work item %s: %w", workItemID, err)
	}

	err = e.locker.WithLock(ctx, workItem.CaseID, func(ctx context.Context) error {
		workItem, err = e.store.WorkItemByID(ctx, workItemID)
		if err != nil {
			return fmt.Errorf("failed to load work item %s: %w", workItemID, err)
		}

		kase, err := e.store.CaseByID(ctx, workItem.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load case %s: %w", workItem.CaseID, err)
		}

		if kase.Status != models.CaseStatusRunning {
			return fmt.Errorf("case %s is %s, not running: %w", kase.ID, kase.Status, ErrInvalidTransition)
		}

		if err := e.policy.Authorize(ctx, workItem, identity); err != nil {
			return err
		}

		if err := workItem.Cancel(identity, time.Now().UTC()); err != nil {
			return err
		}

		if err := e.store.CloseWorkItem(ctx, workItem); err != nil {
			return err
		}

		e.publish(ctx, kase.ID, events.WorkItemCanceled{
			BaseEvent:     events.NewBaseEvent(events.WorkItemCanceledEvent, kase.ID),
			WorkItemID:    workItem.ID,
			TaskSlug:      workItem.TaskSlug,
			ClosedByUser:  workItem.ClosedByUser,
			ClosedByGroup: workItem.ClosedByGroup,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workItem, nil
}

// CancelCase cancels a running case and every still-ready work item in
// it, propagating the canceling identity into the closing fields. This is
// an administrative entry point and never re-enters the cascade.
func (e *Engine) CancelCase(ctx context.Context, caseID string, identity models.Identity) (*models.Case, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.cancel_case",
		attribute.String(otelhelper.CaseIDKey, caseID))
	defer span.End()

	var kase *models.Case

	err := e.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		var err error

		kase, err = e.store.CaseByID(ctx, caseID)
		if err != nil {
			return fmt.Errorf("failed to load case %s: %w", caseID, err)
		}

		now := time.Now().UTC()

		if err := kase.Cancel(identity, now); err != nil {
			return err
		}

		if err := e.store.CloseCase(ctx, kase); err != nil {
			return err
		}

		openItems, err := e.store.OpenWorkItemsByCase(ctx, caseID)
		if err != nil {
			return fmt.Errorf("failed to load open work items of case %s: %w", caseID, err)
		}

		for _, workItem := range openItems {
			if err := workItem.Cancel(identity, now); err != nil {
				return err
			}

			if err := e.store.CloseWorkItem(ctx, workItem); err != nil {
				return fmt.Errorf("failed to cancel work item %s: %w", workItem.ID, err)
			}

			e.publish(ctx, kase.ID, events.WorkItemCanceled{
				BaseEvent:     events.NewBaseEvent(events.WorkItemCanceledEvent, kase.ID),
				WorkItemID:    workItem.ID,
				TaskSlug:      workItem.TaskSlug,
				ClosedByUser:  workItem.ClosedByUser,
				ClosedByGroup: workItem.ClosedByGroup,
			})
		}

		e.publish(ctx, kase.ID, events.CaseCanceled{
			BaseEvent:         events.NewBaseEvent(events.CaseCanceledEvent, kase.ID),
			WorkflowSlug:      kase.WorkflowSlug,
			ClosedByUser:      kase.ClosedByUser,
			ClosedByGroup:     kase.ClosedByGroup,
			CanceledWorkItems: len(openItems),
		})

		e.logger.InfoContext(ctx, "Canceled case",
			"case_id", kase.ID, "canceled_work_items", len(openItems))

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.CaseIDKey, caseID))

		return nil, err
	}

	return kase, nil
}

// CreateWorkItem adds an extra instance of a multiple instance task to a
// running case, addressed to the given groups. Tasks without the
// multiple instance flag get their full instance set at activation time
// and reject explicit creation.
func (e *Engine) CreateWorkItem(ctx context.Context, caseID, taskSlug string, addressedGroups []string, identity models.Identity) (*models.WorkItem, error) {
	var workItem *models.WorkItem

	err := e.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		kase, err := e.store.CaseByID(ctx, caseID)
		if err != nil {
			return fmt.Errorf("failed to load case %s: %w", caseID, err)
		}

		if kase.Status != models.CaseStatusRunning {
			return fmt.Errorf("case %s is %s, not running: %w", kase.ID, kase.Status, ErrInvalidTransition)
		}

		task, err := e.store.TaskBySlug(ctx, taskSlug)
		if err != nil {
			return fmt.Errorf("failed to load task %s: %w", taskSlug, err)
		}

		if !task.IsMultipleInstance {
			return fmt.Errorf("task %s: %w", task.Slug, ErrNotMultipleInstance)
		}

		controllingGroups, err := e.resolveGroups(ctx, task.ControlGroups, task, kase, identity, nil)
		if err != nil {
			return err
		}

		workItem = models.NewWorkItem(task, kase, addressedGroups, controllingGroups)

		if err := e.store.SaveWorkItem(ctx, workItem); err != nil {
			return fmt.Errorf("failed to save work item: %w", err)
		}

		e.publish(ctx, kase.ID, events.NewWorkItemCreated(workItem))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workItem, nil
}

// cascadeOutcome is the full decision of one cascade evaluation, computed
// before anything is committed.
type cascadeOutcome struct {
	successors   []*models.WorkItem
	completeCase bool
}

func (e *Engine) closeAndCascade(
	ctx context.Context,
	workItemID string,
	identity models.Identity,
	status models.WorkItemStatus,
) (*models.WorkItem, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.close_work_item",
		attribute.String(otelhelper.WorkItemIDKey, workItemID),
		attribute.String("caseflow.work_item.target_status", string(status)))
	defer span.End()

	workItem, err := e.store.WorkItemByID(ctx, workItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load work item %s: %w", workItemID, err)
	}

	err = e.locker.WithLock(ctx, workItem.CaseID, func(ctx context.Context) error {
		// Reload under the lock: the pre-lock read only located the case.
		workItem, err = e.store.WorkItemByID(ctx, workItemID)
		if err != nil {
			return fmt.Errorf("failed to load work item %s: %w", workItemID, err)
		}

		kase, err := e.store.CaseByID(ctx, workItem.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load case %s: %w", workItem.CaseID, err)
		}

		if err := e.validateForClose(ctx, workItem, kase, identity, status); err != nil {
			return err
		}

		now := time.Now().UTC()

		var transition error
		if status == models.WorkItemStatusCompleted {
			transition = workItem.Complete(identity, now)
		} else {
			transition = workItem.Skip(identity, now)
		}

		if transition != nil {
			return transition
		}

		// The full cascade decision, including expression evaluation and
		// factory fan-out, happens before the status commit: an
		// EvaluationError here leaves no partial state behind.
		outcome, err := e.decideCascade(ctx, kase, workItem, identity)
		if err != nil {
			return err
		}

		if err := e.store.CloseWorkItem(ctx, workItem); err != nil {
			return err
		}

		if err := e.applyCascade(ctx, kase, workItem, identity, now, outcome); err != nil {
			return err
		}

		e.publishClosed(ctx, workItem, status)

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.WorkItemIDKey, workItemID))

		return nil, err
	}

	return workItem, nil
}

func (e *Engine) validateForClose(
	ctx context.Context,
	workItem *models.WorkItem,
	kase *models.Case,
	identity models.Identity,
	status models.WorkItemStatus,
) error {
	if workItem.Status != models.WorkItemStatusReady {
		return fmt.Errorf("work item %s is %s, not ready: %w", workItem.ID, workItem.Status, ErrInvalidTransition)
	}

	if kase.Status != models.CaseStatusRunning {
		return fmt.Errorf("case %s is %s, not running: %w", kase.ID, kase.Status, ErrInvalidTransition)
	}

	// A spawned sub-workflow blocks completion until its case is terminal.
	// Skipping deliberately bypasses this check.
	if status == models.WorkItemStatusCompleted && workItem.ChildCaseID != "" {
		childCase, err := e.store.CaseByID(ctx, workItem.ChildCaseID)
		if err != nil {
			return fmt.Errorf("failed to load child case %s: %w", workItem.ChildCaseID, err)
		}

		if !childCase.Status.IsTerminal() {
			return fmt.Errorf("work item %s: child case %s is %s: %w",
				workItem.ID, childCase.ID, childCase.Status, ErrUnresolvedChildCase)
		}
	}

	return e.policy.Authorize(ctx, workItem, identity)
}

// decideCascade computes what should happen once the given work item
// leaves ready. The completing item is excluded from the satisfiability
// checks because its own transition has not been committed yet.
func (e *Engine) decideCascade(
	ctx context.Context,
	kase *models.Case,
	workItem *models.WorkItem,
	identity models.Identity,
) (cascadeOutcome, error) {
	flow, err := e.graph.SuccessorFlow(ctx, kase.WorkflowSlug, workItem.TaskSlug)
	if err != nil {
		return cascadeOutcome{}, err
	}

	if flow == nil {
		// No outgoing edge: the task is implicitly terminal. The case
		// completes once no work item anywhere in it is still ready.
		fulfilled, err := e.caseFulfilled(ctx, kase.ID, workItem.ID)
		if err != nil {
			return cascadeOutcome{}, err
		}

		return cascadeOutcome{completeCase: fulfilled}, nil
	}

	siblings, err := e.graph.TasksReferencedBy(ctx, flow)
	if err != nil {
		return cascadeOutcome{}, err
	}

	for _, sibling := range siblings {
		satisfiable, err := e.taskSatisfiable(ctx, kase.ID, sibling.Slug, workItem.ID)
		if err != nil {
			return cascadeOutcome{}, err
		}

		if !satisfiable {
			e.logger.DebugContext(ctx, "Join not satisfied, case keeps waiting",
				"case_id", kase.ID, "task", sibling.Slug)

			return cascadeOutcome{}, nil
		}
	}

	task, err := e.store.TaskBySlug(ctx, workItem.TaskSlug)
	if err != nil {
		return cascadeOutcome{}, fmt.Errorf("failed to load task %s: %w", workItem.TaskSlug, err)
	}

	result, err := e.evaluator.Evaluate(ctx, flow.Next, evalEnv(kase, task, identity, workItem))
	if err != nil {
		return cascadeOutcome{}, err
	}

	nextTasks, err := e.startableTasks(ctx, expr.Normalize(result))
	if err != nil {
		// A successor slug without a task is an unresolvable reference,
		// not a missing resource: the completion rolls back whole.
		if errors.Is(err, persistence.ErrTaskNotFound) {
			return cascadeOutcome{}, &expr.EvaluationError{
				Expression: flow.Next,
				Reason:     "expression selected an unknown task",
				Err:        err,
			}
		}

		return cascadeOutcome{}, err
	}

	if len(nextTasks) == 0 {
		fulfilled, err := e.caseFulfilled(ctx, kase.ID, workItem.ID)
		if err != nil {
			return cascadeOutcome{}, err
		}

		return cascadeOutcome{completeCase: fulfilled}, nil
	}

	successors, err := e.createWorkItems(ctx, nextTasks, kase, identity, workItem)
	if err != nil {
		return cascadeOutcome{}, err
	}

	return cascadeOutcome{successors: successors}, nil
}

// applyCascade commits the side effects of an already-decided cascade.
// The triggering transition is committed at this point, so failures here
// are surfaced as FactoryInconsistencyError rather than rolled back.
func (e *Engine) applyCascade(
	ctx context.Context,
	kase *models.Case,
	workItem *models.WorkItem,
	identity models.Identity,
	now time.Time,
	outcome cascadeOutcome,
) error {
	for _, successor := range outcome.successors {
		if err := e.store.SaveWorkItem(ctx, successor); err != nil {
			return &FactoryInconsistencyError{CaseID: kase.ID, WorkItemID: successor.ID, Err: err}
		}

		e.publish(ctx, kase.ID, events.NewWorkItemCreated(successor))
	}

	if outcome.completeCase {
		if err := kase.Complete(identity, now); err != nil {
			return &FactoryInconsistencyError{CaseID: kase.ID, WorkItemID: workItem.ID, Err: err}
		}

		if err := e.store.CloseCase(ctx, kase); err != nil {
			return &FactoryInconsistencyError{CaseID: kase.ID, WorkItemID: workItem.ID, Err: err}
		}

		e.publish(ctx, kase.ID, events.CaseCompleted{
			BaseEvent:     events.NewBaseEvent(events.CaseCompletedEvent, kase.ID),
			WorkflowSlug:  kase.WorkflowSlug,
			ClosedByUser:  kase.ClosedByUser,
			ClosedByGroup: kase.ClosedByGroup,
		})

		e.logger.InfoContext(ctx, "Completed case", "case_id", kase.ID)
	}

	return nil
}

// taskSatisfiable reports whether no work item of the given task within
// the case is still ready, ignoring excludeID.
func (e *Engine) taskSatisfiable(ctx context.Context, caseID, taskSlug, excludeID string) (bool, error) {
	readyItems, err := e.store.WorkItemsByCaseTaskStatus(ctx, caseID, taskSlug, models.WorkItemStatusReady)
	if err != nil {
		return false, fmt.Errorf("failed to load ready work items for task %s: %w", taskSlug, err)
	}

	for _, item := range readyItems {
		if item.ID != excludeID {
			return false, nil
		}
	}

	return true, nil
}

// caseFulfilled reports whether no work item of the case is still ready,
// ignoring excludeID.
func (e *Engine) caseFulfilled(ctx context.Context, caseID, excludeID string) (bool, error) {
	openItems, err := e.store.OpenWorkItemsByCase(ctx, caseID)
	if err != nil {
		return false, fmt.Errorf("failed to load open work items of case %s: %w", caseID, err)
	}

	for _, item := range openItems {
		if item.ID != excludeID {
			return false, nil
		}
	}

	return true, nil
}

// startableTasks resolves slugs to tasks, dropping archived ones.
func (e *Engine) startableTasks(ctx context.Context, slugs []string) ([]*models.Task, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	tasks, err := e.store.TasksBySlugs(ctx, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tasks %v: %w", slugs, err)
	}

	active := make([]*models.Task, 0, len(tasks))

	for _, task := range tasks {
		if !task.IsArchived {
			active = append(active, task)
		}
	}

	return active, nil
}

func (e *Engine) checkFormAllowed(ctx context.Context, workflow *models.Workflow, formSlug string) error {
	if formSlug == "" {
		return nil
	}

	if _, err := e.store.FormBySlug(ctx, formSlug); err != nil {
		return fmt.Errorf("failed to load form %s: %w", formSlug, err)
	}

	if workflow.AllowAllForms {
		return nil
	}

	for _, allowed := range workflow.AllowForms {
		if allowed == formSlug {
			return nil
		}
	}

	return fmt.Errorf("form %s on workflow %s: %w", formSlug, workflow.Slug, ErrFormNotAllowed)
}

// publishClosed emits the terminal event of the triggering work item. It
// is always the last event of a cascade so consumers observe successor or
// case side effects before the trigger.
func (e *Engine) publishClosed(ctx context.Context, workItem *models.WorkItem, status models.WorkItemStatus) {
	base := events.WorkItemCompleted{
		BaseEvent:     events.NewBaseEvent(events.WorkItemCompletedEvent, workItem.CaseID),
		WorkItemID:    workItem.ID,
		TaskSlug:      workItem.TaskSlug,
		ClosedByUser:  workItem.ClosedByUser,
		ClosedByGroup: workItem.ClosedByGroup,
	}

	if status == models.WorkItemStatusSkipped {
		e.publish(ctx, workItem.CaseID, events.WorkItemSkipped{
			BaseEvent:     events.NewBaseEvent(events.WorkItemSkippedEvent, workItem.CaseID),
			WorkItemID:    base.WorkItemID,
			TaskSlug:      base.TaskSlug,
			ClosedByUser:  base.ClosedByUser,
			ClosedByGroup: base.ClosedByGroup,
		})

		return
	}

	e.publish(ctx, workItem.CaseID, base)
}

// publish is fire-and-forget: sink failures are logged, never propagated,
// and never roll back a committed transition.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "case_id", key, "error", err)
	}
}
