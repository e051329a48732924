package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/qnotify/internal/dispatch"
	"github.com/jmylchreest/qnotify/internal/model"
	"github.com/jmylchreest/qnotify/internal/request"
)

// Parser turns positional Notify arguments into a record.
type Parser interface {
	Parse(ctx context.Context, args []any) model.Record
}

// Agent is the intake path: every request, from the bus or from inside the
// daemon, is parsed and queued here.
type Agent struct {
	mu         sync.RWMutex
	parser     Parser
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

var _ Parser = (*request.Parser)(nil)

// NewAgent creates an Agent feeding dispatcher.
func NewAgent(parser Parser, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		parser:     parser,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// DeliverRequest parses args and enqueues the result. notifyID is the
// transport id (0 in monitor mode). It matches dbus.RequestHandler and is
// safe for concurrent callers.
func (a *Agent) DeliverRequest(args []any, notifyID uint32) {
	a.mu.RLock()
	parser := a.parser
	a.mu.RUnlock()

	rec := parser.Parse(context.Background(), args)
	rec.NotifyID = notifyID

	a.logger.Debug("request received",
		"id", rec.ID,
		"notify_id", notifyID,
		"app", rec.AppName,
		"summary", rec.Summary,
	)

	a.dispatcher.Enqueue(rec)
}

// SetParser replaces the parser used for subsequent requests, for example
// after the icon settings were reloaded.
func (a *Agent) SetParser(parser Parser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parser = parser
}
