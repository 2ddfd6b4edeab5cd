package banner

import (
	"log/slog"

	"github.com/rickgao/geohash/internal/model"
)

// Display shows a short message to the user.
type Display interface {
	ShowBanner(text string)
}

// DisplayFunc is a function adapter for Display.
type DisplayFunc func(string)

func (f DisplayFunc) ShowBanner(text string) { f(text) }

// Notifier renders failures and hands them to a Display.
type Notifier struct {
	texts   *Texts
	display Display
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. display may be nil, in which case the text
// is only logged.
func NewNotifier(texts *Texts, display Display, logger *slog.Logger) *Notifier {
	if texts == nil {
		texts = NewTexts("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{texts: texts, display: display, logger: logger}
}

// NotifyFailure implements the correlator's Notifier.
func (n *Notifier) NotifyFailure(code model.ResponseCode, date model.Date, isToday bool) {
	text := n.texts.Failure(code, date, isToday)
	n.logger.Info("lookup failed", "code", code, "date", date, "today", isToday)
	if n.display != nil {
		n.display.ShowBanner(text)
	}
}
