package alert

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu   sync.Mutex
	sent map[int64][]string
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[msg.ChatID] = append(f.sent[msg.ChatID], msg.Text)
	return tgbotapi.Message{}, f.err
}

func TestAlert_FansOutAndThrottles(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot, []int64{1, 2}, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	n.Alert("storage", "db down")
	n.Alert("storage", "db still down")
	n.Alert("other", "something else")
	n.Wait()

	assert.Equal(t, []string{"db down", "something else"}, bot.sent[1])
	assert.Equal(t, []string{"db down", "something else"}, bot.sent[2])

	now = now.Add(2 * time.Minute)
	n.Alert("storage", "db down again")
	n.Wait()
	assert.Len(t, bot.sent[1], 3)
}

func TestAlert_DeliversInCallOrder(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot, []int64{1}, time.Minute)

	want := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, m := range want {
		n.Alert(m, m)
	}
	n.Wait()

	assert.Equal(t, want, bot.sent[1])
}

func TestAlert_FullQueueDrops(t *testing.T) {
	block := make(chan struct{})
	bot := &blockingBot{release: block}
	n := newNotifier(bot, []int64{1}, time.Minute)

	for i := 0; i < queueSize+10; i++ {
		n.Alert("key-"+strconv.Itoa(i), "m")
	}
	close(block)
	n.Wait()

	assert.LessOrEqual(t, bot.count(), queueSize+1)
}

type blockingBot struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (b *blockingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-b.release
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return tgbotapi.Message{}, nil
}

func (b *blockingBot) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

func TestAlert_SendErrorIsLogged(t *testing.T) {
	bot := &fakeBot{err: errors.New("forbidden")}
	n := newNotifier(bot, []int64{7}, time.Minute)

	assert.NotPanics(t, func() {
		n.Alert("k", "m")
		n.Wait()
	})
}

func TestAlert_NilNotifier(t *testing.T) {
	var n *TelegramNotifier
	assert.NotPanics(t, func() { n.Alert("k", "m") })
}

func TestParseChatIDs(t *testing.T) {
	ids, err := ParseChatIDs(" 12345, -100987 ,")
	require.NoError(t, err)
	assert.Equal(t, []int64{12345, -100987}, ids)

	ids, err = ParseChatIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseChatIDs("12,abc")
	assert.Error(t, err)
}
