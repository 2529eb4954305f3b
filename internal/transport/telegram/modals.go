package telegram

import (
	"context"
	"sync"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/modal"
	tele "gopkg.in/telebot.v4"
)

type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

type dialog interface {
	View() modal.View
	SetInput(input string) error
	Reset()
}

// openModal is the live deposit or buy/sell dialog of one chat.
type openModal struct {
	dialog  dialog
	deposit *modal.Deposit
	trade   *modal.Trade
	render  func(view modal.View) (string, *tele.ReplyMarkup)
	submit  func(ctx context.Context, input string) error

	bot  messenger
	chat *tele.Chat

	// guarded by modalRegistry.mu
	message *tele.Message
}

// modalRegistry keeps at most one open dialog per chat.
type modalRegistry struct {
	mu    sync.Mutex
	items map[int64]*openModal
}

func newModalRegistry() *modalRegistry {
	return &modalRegistry{items: make(map[int64]*openModal)}
}

func (r *modalRegistry) get(chatID int64) *openModal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[chatID]
}

// put opens entry for the chat and returns the dialog it replaced.
func (r *modalRegistry) put(chatID int64, entry *openModal) (previous *openModal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.items[chatID]
	r.items[chatID] = entry
	return previous
}

// remove drops entry if it is still the open dialog of the chat.
func (r *modalRegistry) remove(chatID int64, entry *openModal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[chatID] != entry {
		return false
	}
	delete(r.items, chatID)
	return true
}

func (r *modalRegistry) setMessage(entry *openModal, msg *tele.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.message = msg
}

func (r *modalRegistry) messageOf(entry *openModal) *tele.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entry.message
}
