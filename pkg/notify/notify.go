package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// notificationTitle is the title shown on every alert.
const notificationTitle = "Data Guardian"

// Notifier delivers a data-limit alert to the user. Delivery failures
// are reported, never retried; the caller decides what to log.
type Notifier interface {
	Notify(ctx context.Context, identity string, totalBytes uint64) error
}

// New selects the platform notification mechanism at startup so the
// daemon core never branches on platform.
func New(logger zerolog.Logger) Notifier {
	switch runtime.GOOS {
	case "darwin":
		return &osascriptNotifier{logger: logger}
	case "linux":
		return &notifySendNotifier{logger: logger}
	default:
		return &unsupportedNotifier{platform: runtime.GOOS}
	}
}

func alertBody(identity string, totalBytes uint64) string {
	return fmt.Sprintf("Application '%s' has exceeded the data threshold (%s used).",
		identity, humanize.Bytes(totalBytes))
}

// notifySendNotifier delivers desktop notifications via notify-send.
type notifySendNotifier struct {
	logger zerolog.Logger
}

func (n *notifySendNotifier) Notify(ctx context.Context, identity string, totalBytes uint64) error {
	n.logger.Info().Str("identity", identity).Msg("Sending notification")

	cmd := exec.CommandContext(ctx, "notify-send", "--urgency=critical",
		notificationTitle, alertBody(identity, totalBytes))
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// osascriptNotifier delivers notifications through the macOS
// notification center.
type osascriptNotifier struct {
	logger zerolog.Logger
}

func (n *osascriptNotifier) Notify(ctx context.Context, identity string, totalBytes uint64) error {
	n.logger.Info().Str("identity", identity).Msg("Sending notification")

	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeAppleScript(alertBody(identity, totalBytes)), notificationTitle)

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// unsupportedNotifier reports delivery as failed on platforms without
// a notification mechanism.
type unsupportedNotifier struct {
	platform string
}

func (n *unsupportedNotifier) Notify(_ context.Context, _ string, _ uint64) error {
	return fmt.Errorf("notifications not supported on %s", n.platform)
}
