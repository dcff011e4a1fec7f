package models

import "time"

// ProposalStatus – статус модерации и выбора предложения
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalFiltered ProposalStatus = "filtered"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Valid проверяет, что статус известен
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalFiltered, ProposalApproved, ProposalRejected:
		return true
	}
	return false
}

// ShipStatus – статус перевозки, имеет смысл только для одобренного предложения
type ShipStatus string

const (
	ShipPending   ShipStatus = "pending"
	ShipLoading   ShipStatus = "loading"
	ShipInTransit ShipStatus = "in_transit"
	ShipDelivered ShipStatus = "delivered"
)

// ShipSequence – фиксированная последовательность статусов перевозки
var ShipSequence = []ShipStatus{ShipPending, ShipLoading, ShipInTransit, ShipDelivered}

// Index возвращает позицию статуса в последовательности или -1
func (s ShipStatus) Index() int {
	for i, st := range ShipSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Proposal представляет ставку перевозчика на груз
type Proposal struct {
	ID         string         `json:"id"`
	LoadID     string         `json:"load_id"`
	CarrierID  string         `json:"carrier_id"`
	Vehicle    string         `json:"vehicle"`
	Price      int64          `json:"price"` // в минимальных единицах валюты
	Status     ProposalStatus `json:"status"`
	ShipStatus ShipStatus     `json:"ship_status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ProposalView – предложение с разрешёнными связями для API
type ProposalView struct {
	Proposal
	Load       *Load       `json:"load,omitempty"`
	Carrier    *User       `json:"carrier,omitempty"`
	Commission *Commission `json:"commission,omitempty"`
	ThreadID   string      `json:"thread_id,omitempty"`
}

// ProposalFilter – фильтры списка предложений
type ProposalFilter struct {
	LoadID       string
	OwnerID      string
	OwnerEmail   string
	CarrierID    string
	CarrierEmail string
	Status       ProposalStatus
}
