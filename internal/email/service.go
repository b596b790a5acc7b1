package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/freshmart/internal/model"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to string, order model.Order) error {
	shortID := order.ID
	if len(order.ID) > 8 {
		shortID = order.ID[:8]
	}
	subject := fmt.Sprintf("Your FreshMart order is confirmed (order #%s)", shortID)
	body := BuildOrderConfirmationBody(order)
	return s.send(to, subject, body)
}

// SendPasswordReset sends a password reset link
func (s *Service) SendPasswordReset(to, resetURL string) error {
	subject := "Reset your FreshMart password"
	body := BuildPasswordResetBody(resetURL)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
