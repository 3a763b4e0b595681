package receiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/clinic"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver/keyboards"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/rs/zerolog"
)

const transportErrText = "Could not reach the clinic. Please try again."

// ClinicAPI is the slice of the clinic client the handler needs.
type ClinicAPI interface {
	ListAppointments(ctx context.Context) ([]clinic.Appointment, error)
	CreateAppointment(ctx context.Context, req clinic.CreateAppointmentRequest) (string, error)
	DeleteAppointment(ctx context.Context, id int64) (string, error)
	PayAppointment(ctx context.Context, id int64, req clinic.PaymentRequest) (*clinic.PaymentResult, error)
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier announces confirmed bookings and payments out of band.
type Notifier interface {
	Send(text string) (int, error)
}

// Handler drives the dialog: one update at a time per user, every mutation
// followed by a full list refetch, never an optimistic patch.
type Handler struct {
	bot      botSender
	api      ClinicAPI
	store    *Store
	sessions model.Repo // optional, nil disables persistence
	notify   Notifier   // optional
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHandler(bot botSender, api ClinicAPI, store *Store, sessions model.Repo, notify Notifier, logger zerolog.Logger) *Handler {
	return &Handler{
		bot:      bot,
		api:      api,
		store:    store,
		sessions: sessions,
		notify:   notify,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handler) session(ctx context.Context, userID int64) *Session {
	if sess, ok := h.store.Lookup(userID); ok {
		return sess
	}
	if h.sessions != nil {
		if d, err := h.sessions.LoadSession(ctx, userID); err == nil {
			sess := RestoreSession(*d)
			h.store.Put(userID, sess)
			return sess
		} else {
			h.logger.Warn().Err(err).Int64("user", userID).Msg("load session")
		}
	}
	return h.store.Get(userID)
}

func (h *Handler) persist(ctx context.Context, userID int64, sess *Session) {
	if h.sessions == nil {
		return
	}
	if err := h.sessions.SaveSession(ctx, userID, sess.Snapshot()); err != nil {
		h.logger.Warn().Err(err).Int64("user", userID).Msg("save session")
	}
}

// ---------- Messages ----------

func (h *Handler) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	userID := m.From.ID
	sess := h.session(ctx, userID)
	defer h.persist(ctx, userID, sess)

	if m.IsCommand() && m.Command() == "start" {
		sess.ResetFlow()
		sess.State = StateStart
		greet := tgbotapi.NewMessage(m.Chat.ID, fmt.Sprintf(
			"Welcome %s!\nThis bot manages your clinic appointments: book a service, review your bookings, pay with MTN MoMo or Airtel Money.\nPress START to begin.",
			m.From.FirstName,
		))
		greet.ReplyMarkup = RenderKeyboard(sess)
		if _, err := h.bot.Send(greet); err != nil {
			h.logger.Warn().Err(err).Msg("send start menu")
		}
		return
	}

	text := strings.TrimSpace(m.Text)

	switch sess.State {
	case StatePayPhone:
		if text == "" {
			h.sendText(m.Chat.ID, "Phone number cannot be empty.")
			return
		}
		sess.Payment.Phone = text
		sess.Go(StatePayAmount)
		h.sendScreen(m.Chat.ID, sess)
		return
	case StatePayAmount:
		if amt, err := strconv.ParseFloat(text, 64); err != nil || amt <= 0 {
			h.sendText(m.Chat.ID, "Amount must be a number greater than zero.")
			return
		}
		sess.Payment.Amount = text
		sess.Go(StatePayConfirm)
		h.sendScreen(m.Chat.ID, sess)
		return
	case StateBookNotes:
		sess.Booking.Notes = text
		sess.Go(StateBookConfirm)
		h.sendScreen(m.Chat.ID, sess)
		return
	}

	// Stray text outside input states: drop it and point back to the buttons.
	_, _ = h.bot.Request(tgbotapi.NewDeleteMessage(m.Chat.ID, m.MessageID))
	remind := tgbotapi.NewMessage(m.Chat.ID, "Please use the buttons 👆")
	sent, err := h.bot.Send(remind)
	if err != nil {
		return
	}
	go func(chatID int64, mid int) {
		time.Sleep(5 * time.Second)
		_, _ = h.bot.Request(tgbotapi.NewDeleteMessage(chatID, mid))
	}(sent.Chat.ID, sent.MessageID)
}

// ---------- Callbacks ----------

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		h.answer(cq.ID, "")
		return
	}
	userID := cq.From.ID
	sess := h.session(ctx, userID)
	defer h.persist(ctx, userID, sess)

	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	data := cq.Data

	switch {
	case data == keyboards.CbStart:
		sess.Go(StateMain)

	case data == keyboards.CbBook:
		sess.ResetBooking()
		sess.Go(StateBookService)

	case data == keyboards.CbMy:
		sess.Go(StateAppointments)
		h.answer(cq.ID, "")
		h.refreshAppointments(ctx, chatID, msgID)
		return

	case data == keyboards.CbRefresh:
		h.answer(cq.ID, "")
		h.refreshAppointments(ctx, chatID, msgID)
		return

	case data == keyboards.CbHelp:
		sess.Go(StateHelp)

	case data == keyboards.CbBack:
		sess.Back()
		if sess.State == StateAppointments {
			h.answer(cq.ID, "")
			h.refreshAppointments(ctx, chatID, msgID)
			return
		}

	case data == keyboards.CbCancel:
		if sess.inPaymentFlow() {
			sess.ResetPayment()
			sess.Jump(StateAppointments)
			h.answer(cq.ID, "")
			h.refreshAppointments(ctx, chatID, msgID)
			return
		}
		sess.ResetBooking()
		sess.Jump(StateMain)

	case strings.HasPrefix(data, keyboards.PSvc):
		val, _ := keyboards.Is(data, keyboards.PSvc)
		sess.Booking.Service = val
		sess.Go(StateBookDate)

	case strings.HasPrefix(data, keyboards.PD):
		val, _ := keyboards.Is(data, keyboards.PD)
		sess.Booking.Date = val
		sess.Go(StateBookTime)

	case strings.HasPrefix(data, keyboards.PT):
		val, _ := keyboards.Is(data, keyboards.PT)
		sess.Booking.Time = val
		sess.Go(StateBookNotes)

	case data == keyboards.CbSkip:
		sess.Booking.Notes = ""
		sess.Go(StateBookConfirm)

	case strings.HasPrefix(data, keyboards.PProv):
		val, _ := keyboards.Is(data, keyboards.PProv)
		sess.Payment.Provider = val
		sess.Go(StatePayPhone)

	case strings.HasPrefix(data, keyboards.PPay):
		val, _ := keyboards.Is(data, keyboards.PPay)
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			h.answer(cq.ID, "")
			return
		}
		if sess.Payment.InFlight {
			h.alert(cq.ID, "A payment is already in progress.")
			return
		}
		sess.Payment = PaymentDraft{AppointmentID: id}
		sess.Go(StatePayProvider)

	case strings.HasPrefix(data, keyboards.PDel):
		val, _ := keyboards.Is(data, keyboards.PDel)
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			h.answer(cq.ID, "")
			return
		}
		sess.DeleteID = id
		sess.Go(StateDeleteConfirm)

	case strings.HasPrefix(data, keyboards.PEdit):
		val, _ := keyboards.Is(data, keyboards.PEdit)
		h.beginEdit(cq.ID, val)
		return

	case data == keyboards.CbYes && sess.State == StateDeleteConfirm:
		h.submitDelete(ctx, cq, sess)
		return

	case data == keyboards.CbNo && sess.State == StateDeleteConfirm:
		sess.DeleteID = 0
		sess.Jump(StateAppointments)
		h.answer(cq.ID, "")
		h.refreshAppointments(ctx, chatID, msgID)
		return

	case data == keyboards.CbOk && sess.State == StateBookConfirm:
		h.submitBooking(ctx, cq, sess)
		return

	case data == keyboards.CbOk && sess.State == StatePayConfirm:
		h.submitPayment(ctx, cq, sess)
		return
	}

	h.renderScreen(chatID, msgID, sess)
	h.answer(cq.ID, "")
}

// beginEdit is the id-scoped entry point for a future edit flow.
func (h *Handler) beginEdit(callbackID, id string) {
	h.alert(callbackID, fmt.Sprintf("Editing appointment #%s is not available yet.", id))
}

// ---------- Booking ----------

func (h *Handler) submitBooking(ctx context.Context, cq *tgbotapi.CallbackQuery, sess *Session) {
	req := clinic.CreateAppointmentRequest{
		ServiceType: sess.Booking.Service,
		Date:        sess.Booking.Date,
		Time:        sess.Booking.Time,
		Notes:       sess.Booking.Notes,
	}
	if err := h.validate.Struct(req); err != nil {
		h.alert(cq.ID, "Service, date and time are required.")
		return
	}

	msg, err := h.api.CreateAppointment(ctx, req)
	if err != nil {
		h.failAction(cq.ID, err, "create appointment")
		return
	}

	h.alert(cq.ID, msg)
	if h.notify != nil {
		_, _ = h.notify.Send(fmt.Sprintf("New booking: %s on %s at %s", req.ServiceType, req.Date, req.Time))
	}
	sess.ResetBooking()
	sess.Jump(StateAppointments)
	h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
}

// ---------- Payment ----------

func (h *Handler) submitPayment(ctx context.Context, cq *tgbotapi.CallbackQuery, sess *Session) {
	p := sess.Payment

	if p.Provider != clinic.ProviderMTN && p.Provider != clinic.ProviderAirtel {
		h.alert(cq.ID, "Choose a payment provider.")
		sess.State = StatePayProvider
		h.renderScreen(cq.Message.Chat.ID, cq.Message.MessageID, sess)
		return
	}
	if strings.TrimSpace(p.Phone) == "" {
		h.alert(cq.ID, "Phone number cannot be empty.")
		sess.State = StatePayPhone
		h.renderScreen(cq.Message.Chat.ID, cq.Message.MessageID, sess)
		return
	}
	amount, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil || amount <= 0 {
		h.alert(cq.ID, "Amount must be a number greater than zero.")
		sess.State = StatePayAmount
		h.renderScreen(cq.Message.Chat.ID, cq.Message.MessageID, sess)
		return
	}
	if p.AppointmentID == 0 {
		h.alert(cq.ID, "No appointment selected for payment.")
		sess.ResetPayment()
		sess.Jump(StateAppointments)
		h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
		return
	}

	req := clinic.PaymentRequest{
		PaymentMethod: p.Provider,
		PhoneNumber:   p.Phone,
		Amount:        amount,
	}
	if err := h.validate.Struct(req); err != nil {
		h.alert(cq.ID, "Invalid payment details.")
		return
	}

	sess.Payment.InFlight = true
	res, err := h.api.PayAppointment(ctx, p.AppointmentID, req)
	sess.Payment.InFlight = false
	if err != nil {
		// Draft and selection survive so the user can correct and retry.
		h.failAction(cq.ID, err, "pay appointment")
		return
	}

	text := res.Message
	if res.TransactionID != "" {
		text = fmt.Sprintf("%s (transaction %s)", res.Message, res.TransactionID)
	}
	h.alert(cq.ID, text)
	if h.notify != nil {
		_, _ = h.notify.Send(fmt.Sprintf("Payment received: appointment #%d, %s %.2f via %s",
			p.AppointmentID, p.Phone, amount, p.Provider))
	}
	sess.ResetPayment()
	sess.Jump(StateAppointments)
	h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
}

// ---------- Delete ----------

func (h *Handler) submitDelete(ctx context.Context, cq *tgbotapi.CallbackQuery, sess *Session) {
	id := sess.DeleteID
	if id == 0 {
		sess.Jump(StateAppointments)
		h.answer(cq.ID, "")
		h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
		return
	}

	msg, err := h.api.DeleteAppointment(ctx, id)
	if err != nil {
		h.failAction(cq.ID, err, "delete appointment")
		sess.DeleteID = 0
		sess.Jump(StateAppointments)
		h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
		return
	}

	h.alert(cq.ID, msg)
	sess.DeleteID = 0
	sess.Jump(StateAppointments)
	h.refreshAppointments(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
}

// ---------- Appointment list ----------

// refreshAppointments refetches and fully re-renders the list. Safe to call
// repeatedly; the last edit wins.
func (h *Handler) refreshAppointments(ctx context.Context, chatID int64, msgID int) {
	h.editScreen(chatID, msgID, "Loading appointments…", keyboards.BackMenu())

	appts, err := h.api.ListAppointments(ctx)
	if err != nil {
		var apiErr *clinic.APIError
		text := transportErrText
		if errors.As(err, &apiErr) {
			text = apiErr.Message
		} else {
			h.logger.Error().Err(err).Msg("list appointments")
		}
		h.editScreen(chatID, msgID, text, keyboards.BackMenu())
		return
	}

	h.editScreen(chatID, msgID, renderAppointments(appts), keyboards.AppointmentsMenu(appts))
}

func renderAppointments(appts []clinic.Appointment) string {
	if len(appts) == 0 {
		return "No appointments found."
	}
	var b strings.Builder
	b.WriteString("Your appointments:\n")
	for _, a := range appts {
		notes := a.Notes
		if notes == "" {
			notes = "-"
		}
		paid := "💰 not paid"
		if a.IsPaid {
			paid = "✅ paid"
		}
		fmt.Fprintf(&b, "\n#%d — %s\n📅 %s %s | %s\n📝 %s\n%s\n",
			a.ID, a.ServiceType, a.Date, a.Time, a.Status, notes, paid)
	}
	return b.String()
}

// ---------- Telegram plumbing ----------

func (h *Handler) renderScreen(chatID int64, msgID int, sess *Session) {
	h.editScreen(chatID, msgID, RenderText(sess), RenderKeyboard(sess))
}

func (h *Handler) editScreen(chatID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, kb)
	if _, err := h.bot.Send(edit); err != nil {
		h.logger.Warn().Err(err).Msg("edit message")
	}
}

func (h *Handler) sendText(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Warn().Err(err).Msg("send message")
	}
}

func (h *Handler) sendScreen(chatID int64, sess *Session) {
	msg := tgbotapi.NewMessage(chatID, RenderText(sess))
	msg.ReplyMarkup = RenderKeyboard(sess)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Warn().Err(err).Msg("send message")
	}
}

func (h *Handler) answer(callbackID, text string) {
	_, _ = h.bot.Request(tgbotapi.NewCallback(callbackID, text))
}

func (h *Handler) alert(callbackID, text string) {
	_, _ = h.bot.Request(tgbotapi.NewCallbackWithAlert(callbackID, text))
}

// failAction surfaces an API error verbatim and a generic line for transport
// failures, leaving the current state untouched for a retry.
func (h *Handler) failAction(callbackID string, err error, op string) {
	var apiErr *clinic.APIError
	if errors.As(err, &apiErr) {
		h.alert(callbackID, apiErr.Message)
		return
	}
	h.logger.Error().Err(err).Str("op", op).Msg("clinic api call failed")
	h.alert(callbackID, transportErrText)
}
