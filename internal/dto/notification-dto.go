package dto

type NotificationDTO struct {
	ID          uint64                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ReferenceID *uint64                `json:"reference_id,omitempty"`
	ActionRef   *string                `json:"action_ref,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsRead      bool                   `json:"is_read"`
	CreatedAt   string                 `json:"created_at"`
}
