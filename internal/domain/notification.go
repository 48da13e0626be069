package domain

import "encoding/json"

// Notification is a backend announcement delivered to shop staff, such as a
// low stock warning or an end-of-day summary.
type Notification struct {
	Meta
	ID               int64  `json:"id,omitempty"`
	Shop             int64  `json:"shop,omitempty"`
	Title            string `json:"title,omitempty"`
	Message          string `json:"message,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
	IsRead           bool   `json:"is_read,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	Extra            Extra  `json:"-"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	return MarshalWithExtra(plain(n), n.Extra)
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*n = Notification(p)
	n.Extra = extra
	return nil
}
