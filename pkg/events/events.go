// Package events defines event types for case and work item lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/caseflow/caseflow/pkg/models"
)

type EventType string

// Topic carries all case and work item lifecycle events.
const Topic = "caseflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CaseCreatedEvent   EventType = "case.created"
	CaseCompletedEvent EventType = "case.completed"
	CaseCanceledEvent  EventType = "case.canceled"

	WorkItemCreatedEvent   EventType = "work_item.created"
	WorkItemCompletedEvent EventType = "work_item.completed"
	WorkItemCanceledEvent  EventType = "work_item.canceled"
	WorkItemSkippedEvent   EventType = "work_item.skipped"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	CaseID    string         `json:"case_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CaseCreated struct {
	BaseEvent

	WorkflowSlug string `json:"workflow"`
	FamilyID     string `json:"family_id"`
	CreatedBy    string `json:"created_by"`
}

func (e CaseCreated) GetType() EventType {
	return CaseCreatedEvent
}

type CaseCompleted struct {
	BaseEvent

	WorkflowSlug  string `json:"workflow"`
	ClosedByUser  string `json:"closed_by_user"`
	ClosedByGroup string `json:"closed_by_group"`
}

func (e CaseCompleted) GetType() EventType {
	return CaseCompletedEvent
}

type CaseCanceled struct {
	BaseEvent

	WorkflowSlug      string `json:"workflow"`
	ClosedByUser      string `json:"closed_by_user"`
	ClosedByGroup     string `json:"closed_by_group"`
	CanceledWorkItems int    `json:"canceled_work_items"`
}

func (e CaseCanceled) GetType() EventType {
	return CaseCanceledEvent
}

type WorkItemCreated struct {
	BaseEvent

	WorkItemID      string     `json:"work_item_id"`
	TaskSlug        string     `json:"task"`
	AddressedGroups []string   `json:"addressed_groups"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

func (e WorkItemCreated) GetType() EventType {
	return WorkItemCreatedEvent
}

type WorkItemCompleted struct {
	BaseEvent

	WorkItemID    string `json:"work_item_id"`
	TaskSlug      string `json:"task"`
	ClosedByUser  string `json:"closed_by_user"`
	ClosedByGroup string `json:"closed_by_group"`
}

func (e WorkItemCompleted) GetType() EventType {
	return WorkItemCompletedEvent
}

type WorkItemCanceled struct {
	BaseEvent

	WorkItemID    string `json:"work_item_id"`
	TaskSlug      string `json:"task"`
	ClosedByUser  string `json:"closed_by_user"`
	ClosedByGroup string `json:"closed_by_group"`
}

func (e WorkItemCanceled) GetType() EventType {
	return WorkItemCanceledEvent
}

type WorkItemSkipped struct {
	BaseEvent

	WorkItemID    string `json:"work_item_id"`
	TaskSlug      string `json:"task"`
	ClosedByUser  string `json:"closed_by_user"`
	ClosedByGroup string `json:"closed_by_group"`
}

func (e WorkItemSkipped) GetType() EventType {
	return WorkItemSkippedEvent
}

func NewBaseEvent(eventType EventType, caseID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		CaseID:    caseID,
		Metadata:  make(map[string]any),
	}
}

// NewWorkItemCreated builds the creation event for a freshly materialized
// work item.
func NewWorkItemCreated(workItem *models.WorkItem) WorkItemCreated {
	return WorkItemCreated{
		BaseEvent:       NewBaseEvent(WorkItemCreatedEvent, workItem.CaseID),
		WorkItemID:      workItem.ID,
		TaskSlug:        workItem.TaskSlug,
		AddressedGroups: workItem.AddressedGroups,
		Deadline:        workItem.Deadline,
	}
}
