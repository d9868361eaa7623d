package mutator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
)

// Default notification tools and names.
const (
	DefaultKillTool   = "/usr/bin/killall"
	DefaultNotifyTool = "/usr/bin/notifyutil"
	StoreDaemon       = "tccd"
)

// DefaultNotificationNames are posted after every successful write. The
// host's privacy settings UI listens for these.
var DefaultNotificationNames = []string{
	"com.apple.TCC.access.changed",
	"com.apple.tcc.access.changed",
	"com.apple.security.privacy.changed",
}

// Notifier tells the host that the store changed.
type Notifier struct {
	runner     hostexec.Runner
	storePath  string
	killTool   string
	notifyTool string
	names      []string
	now        func() time.Time
	logger     *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithTools overrides the kill and notify tool paths. Empty values disable
// the corresponding step.
func WithTools(killTool, notifyTool string) NotifierOption {
	return func(n *Notifier) {
		n.killTool = killTool
		n.notifyTool = notifyTool
	}
}

// WithNotificationNames overrides the posted notification names.
func WithNotificationNames(names ...string) NotifierOption {
	return func(n *Notifier) {
		n.names = names
	}
}

// WithNotifierClock sets the time source for the store touch.
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		n.now = now
	}
}

// NewNotifier creates a Notifier for the store at storePath. A nil logger
// uses slog.Default().
func NewNotifier(runner hostexec.Runner, storePath string, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		runner:     runner,
		storePath:  storePath,
		killTool:   DefaultKillTool,
		notifyTool: DefaultNotifyTool,
		names:      DefaultNotificationNames,
		now:        time.Now,
		logger:     logger.With("component", "notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify touches the store, signals its daemon and posts the change
// notifications. Every step runs even if an earlier one failed; the
// joined error is for logging only.
func (n *Notifier) Notify(ctx context.Context) error {
	var errs []error

	if n.storePath != "" {
		t := n.now()
		if err := os.Chtimes(n.storePath, t, t); err != nil {
			errs = append(errs, err)
		}
	}
	if n.killTool != "" {
		// tccd is relaunched on demand; a missing process is not a failure.
		if _, err := n.runner.Run(ctx, n.killTool, StoreDaemon); err != nil && !hostexec.IsExitError(err) {
			errs = append(errs, err)
		}
	}
	if n.notifyTool != "" {
		for _, name := range n.names {
			if _, err := n.runner.Run(ctx, n.notifyTool, "-p", name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		n.logger.Debug("store notification incomplete", "error", err)
	}
	return err
}
