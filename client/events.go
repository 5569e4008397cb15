package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

// Events subscribes to the auth events of the token's account.
// The channel is closed when ctx is done or the server ends the stream.
func (c *Client) Events(ctx context.Context, token string) (<-chan core.AuthEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/events", token, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives any client timeout
	httpClient := *c.http
	httpClient.Timeout = 0
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to auth events")
	}
	if res.StatusCode >= http.StatusBadRequest {
		defer func() { _ = res.Body.Close() }()
		return nil, decodeError(res)
	}

	events := make(chan core.AuthEvent)
	go func() {
		defer close(events)
		defer func() { _ = res.Body.Close() }()
		readEvents(ctx, bufio.NewScanner(res.Body), events)
	}()
	return events, nil
}

// readEvents parses the `data:` lines of a server-sent events stream. Comments & unknown payloads are skipped.
func readEvents(ctx context.Context, scanner *bufio.Scanner, events chan<- core.AuthEvent) {
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "": // end of event
			if data.Len() == 0 {
				continue
			}
			var evt core.AuthEvent
			err := json.Unmarshal([]byte(data.String()), &evt)
			data.Reset()
			if err != nil || evt.Type == "" {
				continue
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		case strings.HasPrefix(line, ":"): // comment
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
