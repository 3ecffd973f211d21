package notify

import (
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier surfaces run results through the local notification
// center. Platforms without one are silently skipped so the daemon can
// run headless.
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send shows the notification on the local desktop
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return d.sendOsascript(n)
	case "linux":
		return d.sendNotifySend(n)
	}
	return nil
}

// sendOsascript goes through the macOS notification center. Titles and
// summaries come from agent output, so quotes must be escaped before the
// text is spliced into AppleScript.
func (d *DesktopNotifier) sendOsascript(n Notification) error {
	script := `display notification "` + escapeAppleScript(n.Message) + `" with title "` + escapeAppleScript(n.Title) + `"`
	return exec.Command("osascript", "-e", script).Run()
}

// sendNotifySend uses libnotify. Failed runs go out with critical urgency.
func (d *DesktopNotifier) sendNotifySend(n Notification) error {
	args := []string{"--app-name=inbox-orch", "-i", iconName(n.Type)}
	if n.Type == NotifyError {
		args = append(args, "-u", "critical")
	}
	args = append(args, n.Title, n.Message)
	return exec.Command("notify-send", args...).Run()
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// iconName maps a notification type to a freedesktop icon
func iconName(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
