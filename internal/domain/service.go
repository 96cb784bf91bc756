package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the dispatch work order a booking hangs off. Every confirmed
// booking owns exactly one service row.
type Service struct {
	ID            int64     `json:"id"`
	ServiceNumber string    `json:"service_number"`
	ServiceType   string    `json:"service_type"`
	CreatedAt     time.Time `json:"created_at"`
}

type ServiceCreate struct {
	ServiceType string `json:"service_type"`
}

type ServicePatch struct {
	ServiceType *string `json:"service_type,omitempty"`
}

type ServicePage struct {
	Data       []Service `json:"data"`
	Count      int64     `json:"count"`
	TotalPages int64     `json:"total_pages"`
}

// NewServiceNumber issues the human-readable number the dispatch desk and
// the customer share, e.g. TOW-3F9A21C4.
func NewServiceNumber() string {
	return "TOW-" + strings.ToUpper(uuid.NewString()[:8])
}

func (c *ServiceCreate) Normalize() {
	c.ServiceType = strings.TrimSpace(c.ServiceType)
	if c.ServiceType == "" {
		c.ServiceType = "tow"
	}
}
