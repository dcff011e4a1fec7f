package models

import "time"

// CommissionStatus – статус выставления счёта по комиссии
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionInvoiced CommissionStatus = "invoiced"
)

// Commission представляет комиссию платформы по одобренному предложению
type Commission struct {
	ID         string           `json:"id"`
	ProposalID string           `json:"proposal_id"`
	Rate       float64          `json:"rate"`
	Amount     int64            `json:"amount"`
	Status     CommissionStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	InvoiceAt  *time.Time       `json:"invoice_at,omitempty"`
}

// PeriodDate – дата, по которой комиссия попадает в отчётный период
func (c *Commission) PeriodDate() time.Time {
	if c.InvoiceAt != nil {
		return *c.InvoiceAt
	}
	return c.CreatedAt
}

// CommissionView – комиссия с данными предложения для отчётов
type CommissionView struct {
	Commission
	LoadID    string `json:"load_id"`
	Price     int64  `json:"price"`
	Carrier   *User  `json:"carrier,omitempty"`
	Owner     *User  `json:"owner,omitempty"`
	CarrierID string `json:"carrier_id"`
}

// CommissionFilter – фильтры журнала комиссий
type CommissionFilter struct {
	Status       CommissionStatus
	OwnerID      string
	OwnerEmail   string
	CarrierID    string
	CarrierEmail string
	From         *time.Time // включительно, по PeriodDate
	To           *time.Time // не включительно
}

// CommissionSummary – агрегаты для панели модератора
type CommissionSummary struct {
	PendingAmount      int64 `json:"pending_amount"`
	InvoicedLast30Days int64 `json:"invoiced_last_30_days"`
	Count              int   `json:"count"`
}
