package core

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEmailMessage_Render(t *testing.T) {
	ParseEmailTemplates(NewTestConfig(), nil)

	msg := &EmailMessage{
		Subject:      "Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Email": "hero@test.cd", "UID": "dWlk", "Token": "tok-en"},
	}
	if err := msg.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, content := range []string{msg.TextContent, msg.HTMLContent} {
		if !strings.Contains(content, "http://localhost:3000/password-reset/dWlk/tok-en") {
			t.Errorf("content misses the reset link: %s", content)
		}
		if !strings.Contains(content, "hero@test.cd") {
			t.Errorf("content misses the recipient: %s", content)
		}
	}

	// missing keys fail in test mode
	bad := &EmailMessage{TemplateName: "password_reset", TemplateData: map[string]interface{}{}}
	if err := bad.Render(); err == nil {
		t.Error("Render() expected an error on missing template data")
	}

	plain := &EmailMessage{BodyStr: "hello"}
	if err := plain.Render(); err != nil || plain.TextContent != "hello" || plain.HTMLContent != "" {
		t.Errorf("Render() plain = %q/%q, err %v", plain.TextContent, plain.HTMLContent, err)
	}
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg EmailMessage
	if err := msg.Attach(strings.NewReader("some notes"), "notes.txt"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if !msg.HasAttachments() {
		t.Fatal("HasAttachments() = false")
	}
	at := msg.Attachments[0]
	if at.Content != base64.StdEncoding.EncodeToString([]byte("some notes")) {
		t.Errorf("Content = %q", at.Content)
	}
	if !strings.HasPrefix(at.ContentType, "text/plain") {
		t.Errorf("ContentType = %q", at.ContentType)
	}
}
