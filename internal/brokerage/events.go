package brokerage

import (
	"time"

	"github.com/rajivgeraev/sendix-api/internal/models"
)

// EventType – тип события реального времени
type EventType string

const (
	EventMessageCreated  EventType = "message.created"
	EventReadUpdated     EventType = "read.updated"
	EventShipmentUpdated EventType = "shipment.updated"
)

// Event – информационное push-событие для комнаты предложения
type Event struct {
	Type       EventType   `json:"type"`
	ProposalID string      `json:"proposal_id"`
	Payload    interface{} `json:"payload"`
	Timestamp  time.Time   `json:"timestamp"`
}

// MessageCreated – полезная нагрузка message.created
type MessageCreated struct {
	ProposalID string         `json:"proposalId"`
	Message    models.Message `json:"message"`
}

// ReadUpdated – полезная нагрузка read.updated
type ReadUpdated struct {
	ProposalID string    `json:"proposalId"`
	UserID     string    `json:"userId"`
	At         time.Time `json:"at"`
}

// ShipmentUpdated – полезная нагрузка shipment.updated
type ShipmentUpdated struct {
	ProposalID string            `json:"proposalId"`
	ShipStatus models.ShipStatus `json:"shipStatus"`
}
