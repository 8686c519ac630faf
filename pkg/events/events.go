// Package events defines the lifecycle notifications published while a
// workflow runs. The polling API never depends on these; they feed logging
// and ops subscribers.
package events

import (
	"time"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

type EventType string

const Topic = "provision.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowCancelledEvent EventType = "workflow.cancelled"

	StepStartedEvent  EventType = "step.started"
	StepProgressEvent EventType = "step.progress"
	StepFinishedEvent EventType = "step.finished"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// Meta exposes the common fields through any embedding event, so subscribers
// can handle every event type uniformly.
func (e BaseEvent) Meta() BaseEvent {
	return e
}

type WorkflowStarted struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	StepCount  int    `json:"step_count"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	StepIndex int    `json:"step_index"`
	Error     string `json:"error"`
}

func (e WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	StepIndex int `json:"step_index"`
}

func (e WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type StepStarted struct {
	BaseEvent

	StepIndex int               `json:"step_index"`
	Action    models.ActionKind `json:"action"`
	Label     string            `json:"label"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepProgress struct {
	BaseEvent

	StepIndex      int               `json:"step_index"`
	Action         models.ActionKind `json:"action"`
	ProcessedItems int               `json:"processed_items"`
	TotalItems     int               `json:"total_items"`
	CurrentItem    string            `json:"current_item,omitempty"`
}

func (e StepProgress) GetType() EventType {
	return StepProgressEvent
}

type StepFinished struct {
	BaseEvent

	StepIndex int               `json:"step_index"`
	Action    models.ActionKind `json:"action"`
	Status    models.StepStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}
