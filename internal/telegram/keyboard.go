package telegram

import (
	"fmt"

	"tutoriasBot/internal/domain/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Инлайн-клавиатуры диалоговых сценариев. Callback-данные кнопок строятся
// Encode-функциями из callback.go.

func CancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancelar", DataCancel),
	)
}

func CarrerasKeyboard(carreras []models.Carrera) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(carreras)+1)
	for _, c := range carreras {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, EncodeCarrera(c.ID)),
		))
	}
	rows = append(rows, CancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func DaysKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Weekdays)+1)
	for _, day := range models.Weekdays {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(string(day), EncodeDay(day)),
		))
	}
	rows = append(rows, CancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SlotsKeyboard(intervals []models.Interval) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(intervals)+3)
	for i, iv := range intervals {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ "+iv.String(), EncodeSlotModify(i)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", EncodeSlotDelete(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Añadir", DataSlotAdd),
		tgbotapi.NewInlineKeyboardButtonData("💾 Guardar", DataSlotSave),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Volver", DataSlotBack),
	))
	rows = append(rows, CancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SubjectsKeyboard(subjects []models.Subject) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subjects)+2)
	for _, s := range subjects {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, EncodeSubject(s.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Omitir ⏭", DataSubjectSkip),
	))
	rows = append(rows, CancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func PurposeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 Anuncios", EncodePurpose(models.PurposeAnnouncements)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Grupal", EncodePurpose(models.PurposeGroup)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Individual", EncodePurpose(models.PurposeIndividual)),
		),
		CancelRow(),
	)
}

func DispositionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mantener miembros", DataDispKeep),
			tgbotapi.NewInlineKeyboardButtonData("Expulsar a todos", DataDispEvict),
		),
		CancelRow(),
	)
}

func DeleteConfirmKeyboard(roomID, tgChatID int64, nonce string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Sí, eliminar", EncodeDeleteConfirm(roomID, tgChatID, nonce)),
		),
		CancelRow(),
	)
}

func StudentsKeyboard(students []models.Member) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(students)+2)
	for _, st := range students {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(st.FirstName, EncodeEvict(st.TgUserID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Expulsar a todos", DataEvictAll),
	))
	rows = append(rows, CancelRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SelfExitKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Salir de la tutoría", DataSelfExit),
		),
		CancelRow(),
	)
}

func StarsKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
	for n := 1; n <= 5; n++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d⭐", n), EncodeStars(n)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func RatingNextKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Añadir comentario", DataRateComment),
			tgbotapi.NewInlineKeyboardButtonData("✅ Finalizar", DataRateFinish),
		),
	)
}
