package models

import "time"

const (
	AuditLogin              = "login"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditRegister           = "register"
	AuditOrderCreated       = "order_created"
	AuditOrderStatusChanged = "order_status_changed"
	AuditReviewCreated      = "review_created"
)

type AuditLog struct {
	ID        string                 `bson:"_id" json:"id"`
	Event     string                 `bson:"event" json:"event"`
	Username  *string                `bson:"username,omitempty" json:"username"`
	IP        string                 `bson:"ip" json:"ip"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}
