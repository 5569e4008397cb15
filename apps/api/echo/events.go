package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var keepAliveInterval = 25 * time.Second

// streamEvents pushes the caller's auth events as server-sent events until the client goes away.
func (h *handlers) streamEvents(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	events, err := h.events.Subscribe(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "subscribing to auth events")
	}

	res := ctx.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return errStreamingFailure
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	// the comment line commits the headers, so clients know the subscription is live
	_, _ = fmt.Fprint(res, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-ticker.C:
			if _, err = fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("encoding auth event", err, usr)
				continue
			}
			if _, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
