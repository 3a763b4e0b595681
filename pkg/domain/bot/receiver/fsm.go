package receiver

import (
	"encoding/json"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver/keyboards"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
)

// ---------- FSM ----------

type State int

const (
	StateStart State = iota
	StateMain
	StateBookService
	StateBookDate
	StateBookTime
	StateBookNotes
	StateBookConfirm
	StateAppointments
	StatePayProvider
	StatePayPhone
	StatePayAmount
	StatePayConfirm
	StateDeleteConfirm
	StateHelp
)

var stateNames = map[State]string{
	StateStart:         "start",
	StateMain:          "main",
	StateBookService:   "book_service",
	StateBookDate:      "book_date",
	StateBookTime:      "book_time",
	StateBookNotes:     "book_notes",
	StateBookConfirm:   "book_confirm",
	StateAppointments:  "appointments",
	StatePayProvider:   "pay_provider",
	StatePayPhone:      "pay_phone",
	StatePayAmount:     "pay_amount",
	StatePayConfirm:    "pay_confirm",
	StateDeleteConfirm: "delete_confirm",
	StateHelp:          "help",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "main"
}

func stateFromName(name string) State {
	for s, n := range stateNames {
		if n == name {
			return s
		}
	}
	return StateMain
}

// BookingDraft is the single pending booking. Service, Date and Time must all
// be set before a create request is issued.
type BookingDraft struct {
	Service string `json:"service"`
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // HH:MM
	Notes   string `json:"notes"`
}

// PaymentDraft holds the one appointment selected for payment and the entered
// fields. AppointmentID == 0 means no selection. Amount stays a string until
// submit, where it must parse to a number strictly greater than zero.
type PaymentDraft struct {
	AppointmentID int64  `json:"appointment_id"`
	Provider      string `json:"provider"`
	Phone         string `json:"phone"`
	Amount        string `json:"amount"`
	InFlight      bool   `json:"in_flight"`
}

type Session struct {
	State    State
	history  []State
	Booking  BookingDraft
	Payment  PaymentDraft
	DeleteID int64
}

func (s *Session) Go(to State) {
	s.history = append(s.history, s.State)
	s.State = to
}

func (s *Session) Back() {
	if n := len(s.history); n > 0 {
		s.State = s.history[n-1]
		s.history = s.history[:n-1]
	} else {
		s.State = StateMain
	}
	if !s.inPaymentFlow() {
		s.ResetPayment()
	}
	if s.State != StateDeleteConfirm {
		s.DeleteID = 0
	}
}

// Jump moves straight to a state, dropping the back history.
func (s *Session) Jump(to State) {
	s.history = s.history[:0]
	s.State = to
}

func (s *Session) ResetFlow() {
	s.State = StateMain
	s.history = s.history[:0]
	s.Booking = BookingDraft{}
	s.ResetPayment()
	s.DeleteID = 0
}

// ResetPayment clears the selected appointment and every entered field,
// regardless of how far the flow had progressed.
func (s *Session) ResetPayment() {
	s.Payment = PaymentDraft{}
}

func (s *Session) ResetBooking() {
	s.Booking = BookingDraft{}
}

func (s *Session) inPaymentFlow() bool {
	switch s.State {
	case StatePayProvider, StatePayPhone, StatePayAmount, StatePayConfirm:
		return true
	}
	return false
}

// ---------- Session store (in-memory, concurrency-safe) ----------

type Store struct {
	mu sync.RWMutex
	m  map[int64]*Session
}

func NewStore() *Store {
	return &Store{m: make(map[int64]*Session)}
}

func (s *Store) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[userID]; ok {
		return sess
	}
	se := &Session{State: StateMain}
	s.m[userID] = se
	return se
}

func (s *Store) Lookup(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[userID]
	return sess, ok
}

func (s *Store) Put(userID int64, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = sess
}

// ---------- Persistence mapping ----------

// Snapshot converts the session into the repository shape.
func (s *Session) Snapshot() model.SessionData {
	return model.SessionData{
		State: s.State.String(),
		Payload: map[string]any{
			"booking":   s.Booking,
			"payment":   s.Payment,
			"delete_id": s.DeleteID,
		},
	}
}

// RestoreSession rebuilds a session from a stored snapshot. The history stack
// is not persisted; Back from a restored state lands on the main menu.
func RestoreSession(d model.SessionData) *Session {
	sess := &Session{State: stateFromName(d.State)}
	raw, err := json.Marshal(d.Payload)
	if err != nil {
		return sess
	}
	var p struct {
		Booking  BookingDraft `json:"booking"`
		Payment  PaymentDraft `json:"payment"`
		DeleteID int64        `json:"delete_id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return sess
	}
	sess.Booking = p.Booking
	sess.Payment = p.Payment
	sess.DeleteID = p.DeleteID
	return sess
}

// ---------- Rendering per state ----------

func RenderText(sess *Session) string {
	switch sess.State {
	case StateMain:
		return "Choose an action:"
	case StateBookService:
		return "Choose a service:"
	case StateBookDate:
		return "Choose a date:"
	case StateBookTime:
		return "Choose a time:"
	case StateBookNotes:
		return "Send a note for the clinic, or skip:"
	case StateBookConfirm:
		notes := sess.Booking.Notes
		if notes == "" {
			notes = "-"
		}
		return fmt.Sprintf(
			"Review your booking:\nService: %s\nDate: %s\nTime: %s\nNotes: %s",
			sess.Booking.Service, keyboards.HumanDate(sess.Booking.Date), sess.Booking.Time, notes,
		)
	case StatePayProvider:
		return "Choose a payment provider:"
	case StatePayPhone:
		return "Send the mobile money phone number:"
	case StatePayAmount:
		return "Send the amount to pay:"
	case StatePayConfirm:
		return fmt.Sprintf(
			"Review your payment:\nAppointment: #%d\nProvider: %s\nPhone: %s\nAmount: %s",
			sess.Payment.AppointmentID, sess.Payment.Provider, sess.Payment.Phone, sess.Payment.Amount,
		)
	case StateDeleteConfirm:
		return fmt.Sprintf("Delete appointment #%d? This cannot be undone.", sess.DeleteID)
	case StateHelp:
		return "Help:\nUse «Book appointment» to pick a service, date and time.\nUse «My appointments» to review, pay for or delete your bookings."
	default:
		return "Menu"
	}
}

func RenderKeyboard(sess *Session) tgbotapi.InlineKeyboardMarkup {
	switch sess.State {
	case StateStart:
		return keyboards.StartMenu()
	case StateMain:
		return keyboards.MainMenu()
	case StateBookService:
		return keyboards.ServiceMenu()
	case StateBookDate:
		return keyboards.DateMenu()
	case StateBookTime:
		return keyboards.TimeMenu()
	case StateBookNotes:
		return keyboards.NotesMenu()
	case StateBookConfirm:
		return keyboards.ConfirmMenu()
	case StatePayProvider:
		return keyboards.ProviderMenu()
	case StatePayPhone, StatePayAmount:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", keyboards.CbCancel)),
		)
	case StatePayConfirm:
		return keyboards.PayConfirmMenu()
	case StateDeleteConfirm:
		return keyboards.DeleteConfirmMenu()
	case StateAppointments, StateHelp:
		return keyboards.BackMenu()
	default:
		return keyboards.MainMenu()
	}
}
