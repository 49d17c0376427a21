package forms

import (
	"context"
	"sync"
	"time"

	"captain/apiclient"
)

// TransientDuration is how long a transient notice stays up.
const TransientDuration = 5 * time.Second

// Notice is the error banner above a form or list.
type Notice struct {
	mu    sync.Mutex
	msg   string
	timer *time.Timer
	ttl   time.Duration
}

func NewNotice() *Notice {
	return &Notice{ttl: TransientDuration}
}

func (n *Notice) Message() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.msg
}

// ShowTransient shows msg and removes it after TransientDuration, unless
// another message replaced it in the meantime.
func (n *Notice) ShowTransient(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.msg = msg

	var t *time.Timer
	t = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.timer == t {
			n.msg = ""
			n.timer = nil
		}
	})
	n.timer = t
}

// ShowPersistent shows msg until Dismiss or the next message.
func (n *Notice) ShowPersistent(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.msg = msg
}

func (n *Notice) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.msg = ""
}

func (n *Notice) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

type Deleter interface {
	Delete(ctx context.Context, kind apiclient.Kind, id uint) (apiclient.Result, error)
}

// Delete removes one resource. On success it returns where to navigate; on
// failure the server's message goes to notice and ok is false.
func Delete(ctx context.Context, d Deleter, kind apiclient.Kind, id uint, notice *Notice) (redirect string, ok bool) {
	notice.Dismiss()

	res, err := d.Delete(ctx, kind, id)
	if err != nil {
		notice.ShowTransient(err.Error())
		return "", false
	}
	return res.Redirect, true
}
