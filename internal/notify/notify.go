package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/recorder"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsMethod = "org.freedesktop.Notifications.Notify"

	appName       = "WindowRecorder"
	expireTimeout = int32(5000)

	// DefaultCallTimeout bounds each notification call. Hooks run inside
	// Session.Stop, also on the signal path.
	DefaultCallTimeout = 2 * time.Second
)

// caller is the part of dbus.BusObject used to post notifications
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier posts desktop notifications on the session bus
type Notifier struct {
	conn *dbus.Conn
	obj  caller

	// Timeout bounds each call made by the lifecycle hooks
	Timeout time.Duration

	mu sync.Mutex
	// replaces maps session IDs to the notification they last posted
	replaces map[string]uint32
}

// New connects to the session bus
func New() (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Notifier{
		conn:     conn,
		obj:      conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath)),
		Timeout:  DefaultCallTimeout,
		replaces: make(map[string]uint32),
	}, nil
}

// Close closes the bus connection
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// Send posts a notification and returns its server assigned ID.
// replacesID 0 posts a new notification.
func (n *Notifier) Send(ctx context.Context, replacesID uint32, summary, body string) (uint32, error) {
	call := n.obj.CallWithContext(ctx, notificationsMethod, 0,
		appName,
		replacesID,
		"media-record",
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expireTimeout,
	)
	if call.Err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

// Hooks returns session lifecycle callbacks that announce recordings.
// Delivery failures are logged and never affect the recording.
func (n *Notifier) Hooks() (onStart, onStop func(recorder.Status)) {
	onStart = func(st recorder.Status) {
		n.post(st.ID, "Recording started", startBody(st))
	}
	onStop = func(st recorder.Status) {
		summary := "Recording saved"
		if st.Error != "" {
			summary = "Recording failed"
		}
		n.post(st.ID, summary, stopBody(st))

		n.mu.Lock()
		delete(n.replaces, st.ID)
		n.mu.Unlock()
	}
	return onStart, onStop
}

func (n *Notifier) post(sessionID, summary, body string) {
	n.mu.Lock()
	replacesID := n.replaces[sessionID]
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
	defer cancel()

	id, err := n.Send(ctx, replacesID, summary, body)
	if err != nil {
		logger.WithComponent("notify").Warn().Err(err).Str("session_id", sessionID).Msg("Notification failed")
		return
	}

	n.mu.Lock()
	n.replaces[sessionID] = id
	n.mu.Unlock()
}

func startBody(st recorder.Status) string {
	target := st.Rect.String()
	if st.Window != nil && st.Window.Title != "" {
		target = st.Window.Title
	}
	return fmt.Sprintf("%s\n%s", target, filepath.Base(st.Path))
}

func stopBody(st recorder.Status) string {
	var elapsed time.Duration
	if st.StartedAt != nil && st.StoppedAt != nil {
		elapsed = st.StoppedAt.Sub(*st.StartedAt).Round(100 * time.Millisecond)
	}
	body := fmt.Sprintf("%s\n%d frames, %s", st.Path, st.Frames, elapsed)
	if st.Error != "" {
		body += "\n" + st.Error
	}
	return body
}
