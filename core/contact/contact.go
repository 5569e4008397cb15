// Package contact delivers the messages of the public contact form.
package contact

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/core"
)

type Message struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (m *Message) Validate(validate *validator.Validate) error {
	m.Name = core.CleanString(m.Name)
	m.Email = core.CleanString(m.Email, true /* lower */)
	m.Subject = core.CleanString(m.Subject)
	m.Message = core.CleanString(m.Message)
	return validate.Struct(m)
}

type (
	Service interface {
		// Send hands the message over to the mail service; delivery is not awaited nor retried.
		Send(ctx context.Context, msg Message) error
	}

	service struct {
		to      mail.Address
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(conf *core.Config, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{to: conf.ContactAddress(), mailSvc: mailSvc, logger: logger}
}

func (svc *service) Send(_ context.Context, msg Message) error {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.to},
		ReplyTo:      &mail.Address{Name: msg.Name, Address: msg.Email},
		Subject:      "[Contact] " + msg.Subject,
		TemplateName: "contact",
		TemplateData: msg,
	})
	svc.logger.Info("contact message queued", msg.Email)
	return nil
}
