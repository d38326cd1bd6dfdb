package webhook

import "context"

// Mock records notifications instead of sending them over the network
// (§4.9 mock variant requirement).
type Mock struct {
	Sent []Event
}

var _ Notifier = (*Mock)(nil)

func (m *Mock) Notify(ctx context.Context, url, secret string, ev Event) error {
	m.Sent = append(m.Sent, ev)
	return nil
}
