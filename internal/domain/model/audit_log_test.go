package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAuditLog(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	log := NewAuditLog(1, AuditActionUpdateOrderStatus, AuditResourceOrder, 42,
		map[string]OrderStatus{"status": OrderStatusPending},
		map[string]OrderStatus{"status": OrderStatusShipped}, at)
	assert.Equal(t, `{"status":"Pending"}`, log.BeforeJSON)
	assert.Equal(t, `{"status":"Shipped"}`, log.AfterJSON)
	assert.Equal(t, int64(42), log.ResourceID)
	assert.Equal(t, at, log.CreatedAt)

	created := NewAuditLog(1, AuditActionCreatePromotion, AuditResourcePromotion, 3, nil, map[string]string{"code": "SAVE10"}, at)
	assert.Empty(t, created.BeforeJSON)
	assert.Equal(t, `{"code":"SAVE10"}`, created.AfterJSON)
}
