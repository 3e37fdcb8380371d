package notifier

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/logger"
)

// TelegramNotifier sends best-effort messages to users through the bot that
// backs the identity widget. Delivery failures are logged, never propagated.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Infof("Notifier authorized on account %s", api.Self.UserName)
	return &TelegramNotifier{api: api}, nil
}

// DiaryRecorded tells the user their confirmed entry landed in the diary.
func (n *TelegramNotifier) DiaryRecorded(ctx context.Context, tgUserID string, entry *database.FoodDiary) {
	chatID, err := strconv.ParseInt(tgUserID, 10, 64)
	if err != nil {
		logger.Warnf("Cannot notify user with non-numeric telegram id %q", tgUserID)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Запись добавлена в дневник питания:\n\n"+entry.Summary())
	if _, err := n.api.Send(msg); err != nil {
		logger.Warnf("Failed to send diary notification to %d: %v", chatID, err)
	}
}
