package fake

import (
	"context"
	"sync"

	"github.com/ambunow/ambugo-app/internal/integrations/mailer"
)

// FakeClient собирает отправленные письма в память. Используется в тестах
// и в локальной разработке, когда ключ почтового API не задан.
type FakeClient struct {
	mu   sync.Mutex
	sent []mailer.Message

	Err error
}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Send(ctx context.Context, msg mailer.Message) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (f *FakeClient) Sent() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message{}, f.sent...)
}
