package models

import (
	"encoding/json"
	"time"
)

// Load представляет заявку на перевозку груза.
// Описательные поля непрозрачны для ядра: оно читает только владельца.
type Load struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	CargoType   string          `json:"cargo_type"`
	Quantity    *float64        `json:"quantity,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Dimensions  string          `json:"dimensions,omitempty"`
	Weight      *float64        `json:"weight,omitempty"`
	Volume      *float64        `json:"volume,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	Description string          `json:"description,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Дополнительные поля для API
	Owner *User `json:"owner,omitempty"`
}

// LoadFilter – фильтры списка грузов
type LoadFilter struct {
	OwnerEmail string
}
