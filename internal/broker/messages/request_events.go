package messages

import "time"

// RequestCreated публикуется после успешной записи заявки в базу.
// Несёт полный снимок: нотификатору не нужно ходить в хранилище.
type RequestCreated struct {
	MessageID string `json:"message_id"`

	RequestID uint64    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`

	PickupText string   `json:"pickup_text"`
	DestText   string   `json:"dest_text"`
	PickupLat  *float64 `json:"pickup_lat,omitempty"`
	PickupLng  *float64 `json:"pickup_lng,omitempty"`
	DestLat    *float64 `json:"dest_lat,omitempty"`
	DestLng    *float64 `json:"dest_lng,omitempty"`

	Date     string  `json:"date"`
	TimeFrom *string `json:"time_from,omitempty"`
	TimeTo   *string `json:"time_to,omitempty"`

	AmbulanceType string `json:"ambulance_type"`
	IsEmergency   bool   `json:"is_emergency"`

	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Comments *string `json:"comments,omitempty"`

	Status      string `json:"status"`
	Source      string `json:"source,omitempty"`
	PublicToken string `json:"public_token"`
}

// RequestStatusChanged публикуется после смены статуса админом.
type RequestStatusChanged struct {
	MessageID string `json:"message_id"`

	RequestID uint64    `json:"request_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
