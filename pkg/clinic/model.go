package clinic

// Appointment statuses as reported by the backend.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCompleted = "COMPLETED"
)

// Mobile-money providers accepted by the payment endpoint.
const (
	ProviderMTN    = "MTN"
	ProviderAirtel = "AIRTEL"
)

// Appointment is a booking record owned by the backend. The client never
// mutates it locally; the list is refetched after every mutation.
type Appointment struct {
	ID          int64  `json:"id"`
	ServiceType string `json:"service_type"`
	Date        string `json:"appointment_date"` // YYYY-MM-DD
	Time        string `json:"appointment_time"` // HH:MM
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	IsPaid      bool   `json:"is_paid"`
}

// CreateAppointmentRequest is the body of POST /api/create-appointment/.
type CreateAppointmentRequest struct {
	ServiceType string `json:"service_type" validate:"required"`
	Date        string `json:"appointment_date" validate:"required"`
	Time        string `json:"appointment_time" validate:"required"`
	Notes       string `json:"notes"`
}

// PaymentRequest is the body of POST /api/pay/{id}/.
type PaymentRequest struct {
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=MTN AIRTEL"`
	PhoneNumber   string  `json:"phone_number" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
}

// PaymentResult is the success payload of the payment endpoint.
type PaymentResult struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

type listResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
