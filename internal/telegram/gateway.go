package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Gateway — исходящие действия к Telegram. Сценарии работают только через
// этот интерфейс; в тестах он подменяется фейком.
type Gateway interface {
	Send(chatID int64, text string) (int, error)
	SendKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	Edit(chatID int64, messageID int, text string) error
	EditKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
	Delete(chatID int64, messageID int) error
	// Ban временно исключает участника из группы. Отработавший until
	// участник может вернуться — это «мягкое исключение».
	Ban(chatID, userID int64, until time.Time) error
	InviteLink(chatID int64) (string, error)
	AnswerCallback(callbackID string) error
}

// BotGateway реализует Gateway поверх Bot API
type BotGateway struct {
	bot *tgbotapi.BotAPI
}

func NewBotGateway(bot *tgbotapi.BotAPI) *BotGateway {
	return &BotGateway{bot: bot}
}

func (g *BotGateway) Send(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"

	sent, err := g.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (g *BotGateway) SendKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = kb

	sent, err := g.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (g *BotGateway) Edit(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "HTML"

	if _, err := g.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (g *BotGateway) EditKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = "HTML"

	if _, err := g.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (g *BotGateway) Delete(chatID int64, messageID int) error {
	if _, err := g.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (g *BotGateway) Ban(chatID, userID int64, until time.Time) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		UntilDate: until.Unix(),
	}

	if _, err := g.bot.Request(ban); err != nil {
		return fmt.Errorf("failed to ban member: %w", err)
	}
	return nil
}

func (g *BotGateway) InviteLink(chatID int64) (string, error) {
	link, err := g.bot.GetInviteLink(tgbotapi.ChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invite link: %w", err)
	}
	return link, nil
}

func (g *BotGateway) AnswerCallback(callbackID string) error {
	if _, err := g.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
