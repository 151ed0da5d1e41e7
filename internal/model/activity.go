package model

import "time"

// Activity action types.
const (
	ActionAdd           = "ADD"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionItemUsed      = "ITEM_USED"
	ActionItemGiven     = "ITEM_GIVEN"
	ActionItemRestored  = "ITEM_RESTORED"
	ActionQuantityDrift = "QUANTITY_DRIFT"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	UserEmail         string    `db:"user_email" json:"user_email,omitempty"`
	ActionType        string    `db:"action_type" json:"action_type"`
	ActionDescription string    `db:"action_description" json:"action_description"`
	TableName         string    `db:"table_name" json:"table_name,omitempty"`
	RecordID          string    `db:"record_id" json:"record_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
