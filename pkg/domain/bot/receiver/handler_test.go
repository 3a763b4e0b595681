package receiver

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/clinic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payCall struct {
	id  int64
	req clinic.PaymentRequest
}

type fakeAPI struct {
	appts     []clinic.Appointment
	listErr   error
	listCalls int

	created   []clinic.CreateAppointmentRequest
	createMsg string
	createErr error

	deleted   []int64
	deleteErr error

	paid   []payCall
	payRes *clinic.PaymentResult
	payErr error
}

func (f *fakeAPI) ListAppointments(ctx context.Context) ([]clinic.Appointment, error) {
	f.listCalls++
	return f.appts, f.listErr
}

func (f *fakeAPI) CreateAppointment(ctx context.Context, req clinic.CreateAppointmentRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, req)
	return f.createMsg, nil
}

func (f *fakeAPI) DeleteAppointment(ctx context.Context, id int64) (string, error) {
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return "Appointment deleted", nil
}

func (f *fakeAPI) PayAppointment(ctx context.Context, id int64, req clinic.PaymentRequest) (*clinic.PaymentResult, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	f.paid = append(f.paid, payCall{id: id, req: req})
	if f.payRes != nil {
		return f.payRes, nil
	}
	return &clinic.PaymentResult{Message: "Payment successful"}, nil
}

type fakeBot struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 1}}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func newTestHandler() (*Handler, *fakeAPI, *fakeBot, *Store) {
	api := &fakeAPI{createMsg: "Appointment created successfully"}
	bot := &fakeBot{}
	store := NewStore()
	h := NewHandler(bot, api, store, nil, nil, zerolog.Nop())
	return h, api, bot, store
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: 1}},
		Data:    data,
	}}
}

func message(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 11,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: 1},
		Text:      text,
	}}
}

// ---------- Booking ----------

func TestBookingMissingFieldsIssuesNoRequest(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateBookConfirm
	sess.Booking = BookingDraft{Service: "Dental Care", Time: "10:00"} // date missing

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	assert.Empty(t, api.created)
	assert.Equal(t, StateBookConfirm, sess.State)
	assert.Equal(t, "Dental Care", sess.Booking.Service, "draft kept for retry")
}

func TestBookingSuccessResetsAndRefreshesOnce(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateBookConfirm
	sess.Booking = BookingDraft{Service: "Dental Care", Date: "2026-09-01", Time: "10:00", Notes: "front tooth"}

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	require.Len(t, api.created, 1)
	assert.Equal(t, clinic.CreateAppointmentRequest{
		ServiceType: "Dental Care",
		Date:        "2026-09-01",
		Time:        "10:00",
		Notes:       "front tooth",
	}, api.created[0])
	assert.Equal(t, 1, api.listCalls, "list refreshed exactly once")
	assert.Equal(t, BookingDraft{}, sess.Booking, "form cleared")
	assert.Equal(t, StateAppointments, sess.State, "form hidden")
}

func TestBookingFailureKeepsDraft(t *testing.T) {
	h, api, _, store := newTestHandler()
	api.createErr = &clinic.APIError{StatusCode: 500, Message: "boom"}
	sess := store.Get(1)
	sess.State = StateBookConfirm
	sess.Booking = BookingDraft{Service: "Eye Care", Date: "2026-09-01", Time: "10:00"}

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	assert.Equal(t, 0, api.listCalls)
	assert.Equal(t, StateBookConfirm, sess.State)
	assert.Equal(t, "Eye Care", sess.Booking.Service)
}

// ---------- List rendering ----------

func TestRenderAppointmentsEmpty(t *testing.T) {
	assert.Equal(t, "No appointments found.", renderAppointments(nil))
	assert.Equal(t, "No appointments found.", renderAppointments([]clinic.Appointment{}))
}

func TestRenderAppointmentsRow(t *testing.T) {
	out := renderAppointments([]clinic.Appointment{{
		ID:          7,
		ServiceType: "Haircut",
		Date:        "2024-05-01",
		Time:        "10:00",
		Status:      clinic.StatusPending,
	}})
	assert.Contains(t, out, "#7 — Haircut")
	assert.Contains(t, out, "2024-05-01 10:00 | PENDING")
	assert.Contains(t, out, "📝 -")
	assert.Contains(t, out, "not paid")
}

func TestRefreshRendersErrorRowOnFailure(t *testing.T) {
	h, api, bot, _ := newTestHandler()
	api.listErr = &clinic.APIError{StatusCode: 500, Message: "Failed to load appointments"}

	h.HandleUpdate(context.Background(), callback(1, "my"))

	require.NotEmpty(t, bot.sent)
	last := bot.sent[len(bot.sent)-1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, "Failed to load appointments", last.Text)
}

// ---------- Payment ----------

func paymentSession(store *Store, userID int64) *Session {
	sess := store.Get(userID)
	sess.State = StatePayConfirm
	sess.Payment = PaymentDraft{
		AppointmentID: 7,
		Provider:      clinic.ProviderMTN,
		Phone:         "0771234567",
		Amount:        "500",
	}
	return sess
}

func TestPaymentSubmitExactRequest(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := paymentSession(store, 1)

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	require.Len(t, api.paid, 1)
	assert.Equal(t, int64(7), api.paid[0].id)
	assert.Equal(t, clinic.PaymentRequest{
		PaymentMethod: "MTN",
		PhoneNumber:   "0771234567",
		Amount:        500,
	}, api.paid[0].req)
	assert.Equal(t, PaymentDraft{}, sess.Payment, "selection cleared")
	assert.Equal(t, 1, api.listCalls, "list refreshed")
}

func TestPaymentAmountValidation(t *testing.T) {
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0", false},
		{"-5", false},
		{"abc", false},
		{"", false},
		{"0.01", true},
	}
	for _, tc := range cases {
		t.Run("amount="+tc.amount, func(t *testing.T) {
			h, api, _, store := newTestHandler()
			sess := paymentSession(store, 1)
			sess.Payment.Amount = tc.amount

			h.HandleUpdate(context.Background(), callback(1, "confirm"))

			if tc.ok {
				require.Len(t, api.paid, 1)
				assert.Equal(t, 0.01, api.paid[0].req.Amount)
			} else {
				assert.Empty(t, api.paid, "no request on invalid amount")
				assert.Equal(t, StatePayAmount, sess.State)
			}
		})
	}
}

func TestPaymentInvalidProviderNoRequest(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := paymentSession(store, 1)
	sess.Payment.Provider = "MPESA"

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	assert.Empty(t, api.paid)
	assert.Equal(t, StatePayProvider, sess.State)
}

func TestPaymentNoSelectionRejected(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := paymentSession(store, 1)
	sess.Payment.AppointmentID = 0

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	assert.Empty(t, api.paid)
	assert.Equal(t, PaymentDraft{}, sess.Payment)
}

func TestPaymentFailureKeepsDraftAndSelection(t *testing.T) {
	h, api, _, store := newTestHandler()
	api.payErr = &clinic.APIError{StatusCode: 400, Message: "Already paid"}
	sess := paymentSession(store, 1)

	h.HandleUpdate(context.Background(), callback(1, "confirm"))

	assert.Equal(t, StatePayConfirm, sess.State)
	assert.Equal(t, int64(7), sess.Payment.AppointmentID)
	assert.Equal(t, "0771234567", sess.Payment.Phone)
	assert.Equal(t, 0, api.listCalls)
}

func TestCancelPaymentAlwaysClearsSelection(t *testing.T) {
	h, _, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StatePayPhone
	sess.Payment = PaymentDraft{AppointmentID: 7, Provider: clinic.ProviderAirtel}

	h.HandleUpdate(context.Background(), callback(1, "cancel"))

	assert.Equal(t, PaymentDraft{}, sess.Payment)
	assert.Equal(t, StateAppointments, sess.State)
}

func TestPayWhileInFlightBlocked(t *testing.T) {
	h, _, bot, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StatePayConfirm
	sess.Payment = PaymentDraft{AppointmentID: 3, InFlight: true}

	h.HandleUpdate(context.Background(), callback(1, "pay:9"))

	assert.Equal(t, int64(3), sess.Payment.AppointmentID, "selection not overwritten")
	assert.Equal(t, StatePayConfirm, sess.State)
	require.NotEmpty(t, bot.requests)
}

func TestPayCallbackSelectsAppointment(t *testing.T) {
	h, _, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateAppointments

	h.HandleUpdate(context.Background(), callback(1, "pay:7"))

	assert.Equal(t, int64(7), sess.Payment.AppointmentID)
	assert.Equal(t, StatePayProvider, sess.State)
}

func TestPaymentPhoneAndAmountInput(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StatePayPhone
	sess.Payment = PaymentDraft{AppointmentID: 7, Provider: clinic.ProviderMTN}

	h.HandleUpdate(context.Background(), message(1, "0771234567"))
	assert.Equal(t, "0771234567", sess.Payment.Phone)
	assert.Equal(t, StatePayAmount, sess.State)

	h.HandleUpdate(context.Background(), message(1, "nonsense"))
	assert.Equal(t, StatePayAmount, sess.State, "invalid amount keeps asking")

	h.HandleUpdate(context.Background(), message(1, "500"))
	assert.Equal(t, StatePayConfirm, sess.State)
	assert.Equal(t, "500", sess.Payment.Amount)
	assert.Empty(t, api.paid, "nothing submitted before confirm")
}

// ---------- Delete ----------

func TestDeleteDeclinedIssuesNoRequest(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateDeleteConfirm
	sess.DeleteID = 5

	h.HandleUpdate(context.Background(), callback(1, "no"))

	assert.Empty(t, api.deleted)
	assert.Equal(t, int64(0), sess.DeleteID)
}

func TestDeleteConfirmedRefreshes(t *testing.T) {
	h, api, _, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateDeleteConfirm
	sess.DeleteID = 5

	h.HandleUpdate(context.Background(), callback(1, "yes"))

	assert.Equal(t, []int64{5}, api.deleted)
	assert.Equal(t, 1, api.listCalls)
	assert.Equal(t, StateAppointments, sess.State)
}

// ---------- Edit stub ----------

func TestEditIsAcknowledgementOnly(t *testing.T) {
	h, api, bot, store := newTestHandler()
	sess := store.Get(1)
	sess.State = StateAppointments

	h.HandleUpdate(context.Background(), callback(1, "edit:7"))

	assert.Equal(t, StateAppointments, sess.State)
	assert.Equal(t, 0, api.listCalls)
	require.NotEmpty(t, bot.requests)
}
