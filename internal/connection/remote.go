package connection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/geohash/internal/model"
)

// Remote dispatches requests over a Client and hands decoded responses to a
// handler. It implements correlator.Dispatcher.
type Remote struct {
	client  Client
	handler func(model.Response)
	logger  *slog.Logger
}

// NewRemote creates a Remote. handler is called from the goroutine running Run.
func NewRemote(client Client, handler func(model.Response), logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{client: client, handler: handler, logger: logger}
}

// Dispatch sends req. The response arrives later through the handler.
func (r *Remote) Dispatch(req model.Request) error {
	if err := r.client.Send(Frame{Type: FrameRequest, Request: EncodeRequest(req)}); err != nil {
		return fmt.Errorf("send request %d: %w", req.ID, err)
	}
	return nil
}

// Session returns the ID the server assigned.
func (r *Remote) Session() string {
	return r.client.Session()
}

// Run reads frames until ctx ends or the connection fails.
func (r *Remote) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-r.client.Errors():
			return fmt.Errorf("connection lost: %w", err)
		case rf := <-r.client.Frames():
			r.handle(rf.Frame)
		}
	}
}

func (r *Remote) handle(f Frame) {
	switch f.Type {
	case FrameResponse:
		if f.Response == nil {
			r.logger.Warn("response frame without body")
			return
		}
		resp, err := f.Response.Decode()
		if err != nil {
			r.logger.Warn("dropping bad response", "id", f.Response.ID, "err", err)
			return
		}
		if r.handler != nil {
			r.handler(resp)
		}
	case FrameError:
		r.logger.Warn("server rejected frame", "error", f.Error)
	default:
		r.logger.Debug("ignoring frame", "type", f.Type)
	}
}
