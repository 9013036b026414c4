package mail

import (
	"context"

	"petstore/internal/domain/model"
)

// Notifierは通知を描画して送る（outboxのnotificationsトピック用）
type Notifier struct {
	renderer *Renderer
	sender   Sender
}

func NewNotifier(r *Renderer, s Sender) *Notifier {
	return &Notifier{renderer: r, sender: s}
}

func (n *Notifier) Notify(ctx context.Context, note model.Notification) error {
	msg, err := n.renderer.Render(note)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}
