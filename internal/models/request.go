package models

import "time"

// Статусы жизненного цикла заявки. Переходы делает только админ;
// порядок переходов намеренно не форсируется.
const (
	RequestStatusPending   = "pending"
	RequestStatusOffered   = "offered"
	RequestStatusBooked    = "booked"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
)

const (
	AmbulanceTypeBasic   = "basic"
	AmbulanceTypeDoctor  = "doctor"
	AmbulanceTypeICU     = "icu"
	AmbulanceTypeUnknown = "unknown"
)

// ValidStatus reports whether s is one of the fixed status values.
func ValidStatus(s string) bool {
	switch s {
	case RequestStatusPending, RequestStatusOffered, RequestStatusBooked,
		RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// ValidAmbulanceType reports whether s is one of the fixed ambulance types.
func ValidAmbulanceType(s string) bool {
	switch s {
	case AmbulanceTypeBasic, AmbulanceTypeDoctor, AmbulanceTypeICU, AmbulanceTypeUnknown:
		return true
	}
	return false
}

// Человекочитаемые подписи (как на публичной странице и в письмах).
var AmbulanceTypeLabel = map[string]string{
	AmbulanceTypeBasic:   "Απλό ασθενοφόρο",
	AmbulanceTypeDoctor:  "Με συνοδεία ιατρού",
	AmbulanceTypeICU:     "Μονάδα εντατικής θεραπείας (ΜΕΘ)",
	AmbulanceTypeUnknown: "Δεν είναι σίγουρος – να προτείνει η εταιρεία",
}

var StatusLabel = map[string]string{
	RequestStatusPending:   "Σε αναμονή για προσφορές",
	RequestStatusOffered:   "Υπάρχουν διαθέσιμες προσφορές",
	RequestStatusBooked:    "Έχει γίνει κράτηση",
	RequestStatusCompleted: "Η μεταφορά ολοκληρώθηκε",
	RequestStatusCancelled: "Το αίτημα ακυρώθηκε",
}

type Request struct {
	ID uint64

	PickupText string
	DestText   string
	PickupLat  *float64
	PickupLng  *float64
	DestLat    *float64
	DestLng    *float64

	// Date is the transport date (YYYY-MM-DD), not the creation time.
	Date     string
	TimeFrom *string
	TimeTo   *string

	AmbulanceType string
	IsEmergency   bool

	Email    *string
	FullName *string
	Phone    *string
	Comments *string

	CreatedAt time.Time
	Status    string
	Source    string

	// PublicToken grants unauthenticated read-only access to this
	// request's status page. Generated once, never rotated.
	PublicToken string
}

type RequestCreateInput struct {
	PickupText string
	DestText   string
	PickupLat  *float64
	PickupLng  *float64
	DestLat    *float64
	DestLng    *float64

	Date     string
	TimeFrom *string
	TimeTo   *string

	AmbulanceType string
	IsEmergency   bool

	Email    *string
	FullName *string
	Phone    *string
	Comments *string

	Source      string
	PublicToken string
}
