package keyboards

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/clinic"
)

// Callback data vocabulary. Prefixed keys carry a value after the colon.
const (
	CbStart   = "start"
	CbBook    = "book"
	CbMy      = "my"
	CbHelp    = "help"
	CbBack    = "back"
	CbOk      = "confirm"
	CbCancel  = "cancel"
	CbRefresh = "refresh"
	CbSkip    = "skip_notes"
	CbYes     = "yes"
	CbNo      = "no"

	PSvc  = "svc:"  // svc:Dental Care
	PD    = "d:"    // d:2026-09-01
	PT    = "t:"    // t:10:30
	PProv = "prov:" // prov:MTN
	PPay  = "pay:"  // pay:7
	PDel  = "del:"  // del:7
	PEdit = "edit:" // edit:7
)

// Is reports whether k carries the given prefix and returns the value part.
func Is(k, prefix string) (string, bool) {
	if strings.HasPrefix(k, prefix) {
		return strings.TrimPrefix(k, prefix), true
	}
	return "", false
}

var services = []string{"General Checkup", "Dental Care", "Eye Care", "Lab Tests"}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", CbBack))
}

func StartMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("START", CbStart)),
	)
}

func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🩺 Book appointment", CbBook)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 My appointments", CbMy)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Help", CbHelp)),
	)
}

func ServiceMenu() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, s := range services {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s, PSvc+s),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func DateMenu() tgbotapi.InlineKeyboardMarkup {
	now := time.Now()
	row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for i := 1; i <= 3; i++ {
		d := now.AddDate(0, 0, i).Format("2006-01-02")
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(HumanDate(d), PD+d))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, backRow())
}

func TimeMenu() tgbotapi.InlineKeyboardMarkup {
	slots := []string{"09:00", "10:00", "11:00", "14:00", "16:00"}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(slots))
	for _, t := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t, PT+t))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, backRow())
}

func NotesMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Skip notes", CbSkip)),
		backRow(),
	)
}

func ConfirmMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", CbOk)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", CbCancel)),
		backRow(),
	)
}

func ProviderMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("MTN MoMo", PProv+clinic.ProviderMTN),
			tgbotapi.NewInlineKeyboardButtonData("Airtel Money", PProv+clinic.ProviderAirtel),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", CbCancel)),
	)
}

func PayConfirmMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💳 Pay now", CbOk)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", CbCancel)),
	)
}

func DeleteConfirmMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", CbYes),
			tgbotapi.NewInlineKeyboardButtonData("No", CbNo),
		),
	)
}

func BackMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}

// AppointmentsMenu builds one button row per appointment, each button carrying
// that appointment's id in its callback data. Pay appears only for unpaid rows.
func AppointmentsMenu(appts []clinic.Appointment) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(appts)+2)
	for _, a := range appts {
		id := fmt.Sprintf("%d", a.ID)
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✏️ "+id, PEdit+id),
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+id, PDel+id),
		}
		if !a.IsPaid {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("💳 Pay "+id, PPay+id))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", CbRefresh)),
		backRow(),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func HumanDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01 (Mon)")
}
