package model

import (
	"encoding/json"
	"time"
)

// 管理者操作の種類
type AuditAction string

const (
	AuditActionUpdateStock       AuditAction = "UPDATE_STOCK"
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//管理者が入金済みにした操作
	AuditActionMarkOrderPaid   AuditAction = "MARK_ORDER_PAID"
	AuditActionCreatePromotion AuditAction = "CREATE_PROMOTION"
	AuditActionUpdatePromotion AuditAction = "UPDATE_PROMOTION"
	AuditActionDeletePromotion AuditAction = "DELETE_PROMOTION"
	AuditActionForceLogout     AuditAction = "FORCE_LOGOUT"
)

type AuditResourceType string

const (
	AuditResourceProduct   AuditResourceType = "product"
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourceUser      AuditResourceType = "user"
	AuditResourcePromotion AuditResourceType = "promotion"
)

// 監査ログ。誰が・どの対象を・どう変えたか（before/afterはJSON）
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before_json,omitempty"`
	AfterJSON    string            `gorm:"type:text" json:"after_json,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

// NewAuditLogはbefore/afterをJSONにして1件組み立てる。nilなら空のまま
func NewAuditLog(actor int64, action AuditAction, resource AuditResourceType, id int64, before, after any, at time.Time) AuditLog {
	return AuditLog{
		ActorUserID:  actor,
		Action:       action,
		ResourceType: resource,
		ResourceID:   id,
		BeforeJSON:   auditJSON(before),
		AfterJSON:    auditJSON(after),
		CreatedAt:    at,
	}
}

func auditJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
