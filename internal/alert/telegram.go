package alert

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// DefaultQuietPeriod is how long an alert key stays muted after it fired.
const DefaultQuietPeriod = 5 * time.Minute

// queueSize bounds pending alerts; Alert drops rather than blocks when full.
const queueSize = 64

type outgoing struct {
	chatID int64
	text   string
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends operator alerts to a fixed set of chats.
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
	quiet   time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last map[string]time.Time

	queue chan outgoing
	start sync.Once
	wg    sync.WaitGroup
}

func NewTelegramNotifier(botToken string, chatIDs []int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newNotifier(bot, chatIDs, DefaultQuietPeriod), nil
}

func newNotifier(bot sender, chatIDs []int64, quiet time.Duration) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		quiet:   quiet,
		now:     time.Now,
		last:    make(map[string]time.Time),
		queue:   make(chan outgoing, queueSize),
	}
}

// Alert sends message to every chat unless key already fired within the
// quiet period. Sends happen in the background, in the order Alert was called.
func (tn *TelegramNotifier) Alert(key, message string) {
	if tn == nil || tn.bot == nil {
		return
	}

	tn.mu.Lock()
	now := tn.now()
	if at, ok := tn.last[key]; ok && now.Sub(at) < tn.quiet {
		tn.mu.Unlock()
		return
	}
	tn.last[key] = now
	tn.mu.Unlock()

	tn.start.Do(func() { go tn.run() })

	for _, chatID := range tn.chatIDs {
		tn.wg.Add(1)
		select {
		case tn.queue <- outgoing{chatID: chatID, text: message}:
		default:
			tn.wg.Done()
			log.Warnf("telegram alert queue full, dropping alert %q for chat %d", key, chatID)
		}
	}
}

func (tn *TelegramNotifier) run() {
	for m := range tn.queue {
		if _, err := tn.bot.Send(tgbotapi.NewMessage(m.chatID, m.text)); err != nil {
			log.Errorf("Failed to send telegram message to chat %d: %v", m.chatID, err)
		}
		tn.wg.Done()
	}
}

// Wait blocks until queued sends finish.
func (tn *TelegramNotifier) Wait() {
	tn.wg.Wait()
}

// ParseChatIDs reads a comma separated list such as "12345,-100987".
func ParseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
