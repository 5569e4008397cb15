package contact_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core/contact"
	emailsvc "github.com/trezcool/tutorhub/services/email"
	"github.com/trezcool/tutorhub/tests"
)

func TestMessage_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		msg     contact.Message
		wantErr bool
	}{
		{"ok", contact.Message{Name: "Ada", Email: "ADA@example.test ", Subject: "Hi", Message: "Hello"}, false},
		{"missing name", contact.Message{Email: "ada@example.test", Subject: "Hi", Message: "Hello"}, true},
		{"bad email", contact.Message{Name: "Ada", Email: "ada", Subject: "Hi", Message: "Hello"}, true},
		{"blank message", contact.Message{Name: "Ada", Email: "ada@example.test", Subject: "Hi", Message: "   "}, true},
		{"long subject", contact.Message{Name: "Ada", Email: "ada@example.test", Subject: strings.Repeat("x", 201), Message: "Hello"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Send(t *testing.T) {
	app := testutil.NewApp()

	msg := contact.Message{Name: "Ada", Email: "ada@example.test", Subject: "Rates", Message: "How much is an hour?"}
	require.NoError(t, app.ContactSvc.Send(context.Background(), msg))

	require.Len(t, emailsvc.SentMessages, 1)
	sent := emailsvc.SentMessages[0]
	assert.Equal(t, "hello@tutorhub.test", sent.To[0].Address)
	if assert.NotNil(t, sent.ReplyTo) {
		assert.Equal(t, "ada@example.test", sent.ReplyTo.Address)
	}
	assert.Contains(t, sent.Subject, "[Contact] Rates")
	assert.Contains(t, sent.TextContent, "How much is an hour?")
	assert.Contains(t, sent.HTMLContent, "Ada &lt;ada@example.test&gt;")
}
