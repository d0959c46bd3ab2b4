package booking

import (
	"fmt"
	"os"
	"strconv"

	"github.com/KOseiBonsu/Konekt-server/cmd/models"
	"gopkg.in/gomail.v2"
)

// SMTPMailer sends booking lifecycle emails through the configured SMTP
// relay (SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD).
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

func (m *SMTPMailer) BookingConfirmed(to string, conv *models.Conversation) error {
	subject := fmt.Sprintf("Your conversation on %s is confirmed", conv.ScheduledTime.Format("Jan 2, 15:04 MST"))
	body := fmt.Sprintf(
		"Your %d minute conversation is booked for %s.\n\nTopic: %s\nAmount paid: %.2f\n",
		conv.DurationMinutes, conv.ScheduledTime.Format("Monday, Jan 2 at 15:04 MST"), conv.Topic, conv.TotalAmount,
	)
	return m.send(to, subject, body)
}

func (m *SMTPMailer) BookingCancelled(to string, conv *models.Conversation) error {
	subject := "Your conversation booking was cancelled"
	body := fmt.Sprintf(
		"Your conversation scheduled for %s has been cancelled. The slot has been released.\n",
		conv.ScheduledTime.Format("Monday, Jan 2 at 15:04 MST"),
	)
	return m.send(to, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", os.Getenv("SMTP_USER"))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASSWORD")
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}

	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)
	return d.DialAndSend(msg)
}
