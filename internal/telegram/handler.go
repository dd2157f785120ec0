package telegram

import (
	"context"
	"log/slog"

	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/pkg/logger/sl"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler превращает обновления Telegram во входящие события движка
type Handler struct {
	bot    *tgbotapi.BotAPI
	gw     Gateway
	engine *engine.Engine
	log    *slog.Logger
}

func NewHandler(log *slog.Logger, bot *tgbotapi.BotAPI, gw Gateway, eng *engine.Engine) *Handler {
	return &Handler{
		bot:    bot,
		gw:     gw,
		engine: eng,
		log:    log,
	}
}

// Start запускает long-polling цикл. События доставляются по одному:
// обработчик, включая его I/O, завершается до выдачи следующего события.
// Нагрузка интерактивная, высокая пропускная способность не требуется.
func (h *Handler) Start(ctx context.Context) error {
	h.log.Info("authorized on telegram", slog.String("account", h.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if ev, ok := h.toEvent(update); ok {
				h.engine.Dispatch(ctx, ev)
			}
		}
	}
}

// toEvent конвертирует обновление в событие движка. Непригодные обновления
// (недекодируемый callback, служебный шум) отбрасываются здесь же.
func (h *Handler) toEvent(update tgbotapi.Update) (engine.Event, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return engine.Event{}, false
		}

		ev := engine.Event{
			Kind:      engine.KindMessage,
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			FirstName: msg.From.FirstName,
			Text:      msg.Text,
			MessageID: msg.MessageID,
		}
		if msg.IsCommand() {
			ev.Command = msg.Command()
		}
		return ev, true

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return engine.Event{}, false
		}

		// Сразу гасим «часики» на кнопке
		if err := h.gw.AnswerCallback(cb.ID); err != nil {
			h.log.Warn("failed to answer callback", sl.Err(err))
		}

		decoded, err := DecodeCallback(cb.Data)
		if err != nil {
			h.log.Debug("undecodable callback dropped", sl.Err(err))
			return engine.Event{}, false
		}

		return engine.Event{
			Kind:       engine.KindCallback,
			ChatID:     cb.Message.Chat.ID,
			UserID:     cb.From.ID,
			FirstName:  cb.From.FirstName,
			Text:       cb.Data,
			MessageID:  cb.Message.MessageID,
			CallbackID: cb.ID,
			Callback:   decoded,
		}, true

	case update.MyChatMember != nil:
		mc := update.MyChatMember
		if mc.NewChatMember.Status != "administrator" {
			return engine.Event{}, false
		}

		return engine.Event{
			Kind:   engine.KindPromotion,
			ChatID: mc.Chat.ID,
			UserID: mc.From.ID,
			Promotion: &engine.Promotion{
				PromotedBy:  mc.From.ID,
				ChatTitle:   mc.Chat.Title,
				CanInvite:   mc.NewChatMember.CanInviteUsers,
				CanRestrict: mc.NewChatMember.CanRestrictMembers,
			},
		}, true
	}

	return engine.Event{}, false
}
