package notification

const (
	TaskDeliver = "notification:deliver"
)

type DeliverPayload struct {
	UserID    string `json:"user_id"`
	Icon      string `json:"icon"`
	Title     string `json:"title"`
	ActionURL string `json:"action_url"`
	TraceID   string `json:"trace_id,omitempty"`
}
