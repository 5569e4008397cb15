package client

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorhub/core"
)

func TestReadEvents(t *testing.T) {
	stream := ": connected\n\n" +
		"event: signed_out\ndata: {\"type\":\"signed_out\",\"user_id\":\"u1\"}\n\n" +
		": keep-alive\n\n" +
		"data: not json\n\n" +
		"event: user_updated\ndata:{\"type\":\"user_updated\",\n" +
		"data: \"user_id\":\"u1\"}\n\n" +
		"data: {\"type\":\"signed_in\",\"user_id\":\"u1\"}" // unterminated

	events := make(chan core.AuthEvent, 10)
	readEvents(context.Background(), bufio.NewScanner(strings.NewReader(stream)), events)
	close(events)

	var got []core.AuthEventType
	for evt := range events {
		assert.Equal(t, "u1", evt.UserID)
		got = append(got, evt.Type)
	}
	assert.Equal(t, []core.AuthEventType{core.EventSignedOut, core.EventUserUpdated}, got)
}
