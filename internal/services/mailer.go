package services

import (
	"gopkg.in/gomail.v2"
)

// Mailer dispatches notification email. A single synchronous attempt
// per send; no retries.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through the configured relay.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
}

func NewSMTPMailer(host string, port int, sender, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.host, m.port, m.sender, m.password)
	return dialer.DialAndSend(msg)
}
