package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/caseflow/caseflow/pkg/engine"
	"github.com/caseflow/caseflow/pkg/forms"
	"github.com/caseflow/caseflow/pkg/graph"
	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// Identity headers. Authentication happens upstream; the API only
// records who acted.
const (
	userHeader  = "X-Caseflow-User"
	groupHeader = "X-Caseflow-Group"
)

type APIHandlers struct {
	engine    *engine.Engine
	store     persistence.Persistence
	graph     *graph.Model
	validator *validator.Validate
}

func NewAPIHandlers(
	caseEngine *engine.Engine,
	store persistence.Persistence,
	graphModel *graph.Model,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    caseEngine,
		store:     store,
		graph:     graphModel,
		validator: validator,
	}
}

func identityFrom(c fiber.Ctx) models.Identity {
	return models.Identity{
		Username: c.Get(userHeader),
		Group:    c.Get(groupHeader),
	}
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks, err := h.store.Tasks(c.Context())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.store.TaskBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	task := &models.Task{
		Slug:               req.Slug,
		Name:               req.Name,
		Description:        req.Description,
		Type:               models.TaskType(req.Type),
		Meta:               req.Meta,
		AddressGroups:      req.AddressGroups,
		ControlGroups:      req.ControlGroups,
		FormSlug:           req.FormSlug,
		LeadTime:           req.LeadTime,
		IsMultipleInstance: req.IsMultipleInstance,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.store.SaveTask(c.Context(), task); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.Workflows(c.Context())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowCases(c fiber.Ctx) error {
	cases, err := h.store.CasesByWorkflow(c.Context(), c.Params("slug"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"cases": cases})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		Slug:          req.Slug,
		Name:          req.Name,
		Description:   req.Description,
		Meta:          req.Meta,
		StartTasks:    req.StartTasks,
		IsPublished:   req.IsPublished,
		AllowAllForms: req.AllowAllForms,
		AllowForms:    req.AllowForms,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.SaveWorkflow(c.Context(), workflow); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// CreateFlow binds an outgoing edge to a task within a workflow. A task
// already bound to a flow rejects the second edge.
func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{Next: req.Next, CreatedAt: time.Now().UTC()}

	taskFlow, err := h.graph.AddTaskFlow(c.Context(), c.Params("slug"), req.TaskSlug, flow)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"flow": flow, "task_flow": taskFlow})
}

func (h *APIHandlers) CreateForm(c fiber.Ctx) error {
	var req CreateFormRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	form := &models.Form{Slug: req.Slug, Name: req.Name, Schema: req.Schema}

	if err := h.store.SaveForm(c.Context(), form); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(form)
}

func (h *APIHandlers) GetForm(c fiber.Ctx) error {
	form, err := h.store.FormBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(form)
}

func (h *APIHandlers) StartCase(c fiber.Ctx) error {
	var req StartCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.FormSlug != "" {
		form, err := h.store.FormBySlug(c.Context(), req.FormSlug)
		if err != nil {
			return handleEngineError(c, err)
		}

		if err := forms.Validate(form, req.Document); err != nil {
			return handleEngineError(c, err)
		}
	}

	kase, err := h.engine.StartCase(c.Context(), engine.StartCaseParams{
		WorkflowSlug:     req.WorkflowSlug,
		FormSlug:         req.FormSlug,
		Meta:             req.Meta,
		Document:         req.Document,
		ParentWorkItemID: req.ParentWorkItemID,
		Identity:         identityFrom(c),
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(kase)
}

func (h *APIHandlers) GetCase(c fiber.Ctx) error {
	kase, err := h.store.CaseByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(kase)
}

func (h *APIHandlers) CancelCase(c fiber.Ctx) error {
	kase, err := h.engine.CancelCase(c.Context(), c.Params("id"), identityFrom(c))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(kase)
}

func (h *APIHandlers) GetCaseWorkItems(c fiber.Ctx) error {
	workItems, err := h.store.WorkItemsByCase(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"work_items": workItems})
}

// CreateCaseWorkItem adds an instance of a multiple instance task to a
// running case.
func (h *APIHandlers) CreateCaseWorkItem(c fiber.Ctx) error {
	var req CreateWorkItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workItem, err := h.engine.CreateWorkItem(
		c.Context(), c.Params("id"), req.TaskSlug, req.AddressedGroups, identityFrom(c))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workItem)
}

func (h *APIHandlers) GetWorkItem(c fiber.Ctx) error {
	workItem, err := h.store.WorkItemByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workItem)
}

func (h *APIHandlers) CompleteWorkItem(c fiber.Ctx) error {
	var req CloseWorkItemRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if req.Document != nil {
		if err := h.attachDocument(c.Context(), c.Params("id"), req.Document); err != nil {
			return handleEngineError(c, err)
		}
	}

	workItem, err := h.engine.CompleteWorkItem(c.Context(), c.Params("id"), identityFrom(c))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workItem)
}

func (h *APIHandlers) SkipWorkItem(c fiber.Ctx) error {
	workItem, err := h.engine.SkipWorkItem(c.Context(), c.Params("id"), identityFrom(c))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workItem)
}

func (h *APIHandlers) CancelWorkItem(c fiber.Ctx) error {
	workItem, err := h.engine.CancelWorkItem(c.Context(), c.Params("id"), identityFrom(c))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workItem)
}

// attachDocument stores the completion document on the work item after
// validating it against the task form, when the task binds one.
func (h *APIHandlers) attachDocument(ctx context.Context, workItemID string, document map[string]any) error {
	workItem, err := h.store.WorkItemByID(ctx, workItemID)
	if err != nil {
		return err
	}

	task, err := h.store.TaskBySlug(ctx, workItem.TaskSlug)
	if err != nil {
		return err
	}

	if task.Type == models.TaskTypeCompleteTaskForm && task.FormSlug != "" {
		form, err := h.store.FormBySlug(ctx, task.FormSlug)
		if err != nil {
			return err
		}

		if err := forms.Validate(form, document); err != nil {
			return err
		}
	}

	workItem.Document = document
	workItem.UpdatedAt = time.Now().UTC()

	return h.store.SaveWorkItem(ctx, workItem)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.store.HealthCheck(c.Context())

	status := "healthy"
	message := "Caseflow API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Caseflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
