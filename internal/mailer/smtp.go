package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"text/template"
	"time"

	gomail "gopkg.in/mail.v2"
)

type SMTPClient struct {
	dialer    *gomail.Dialer
	fromEmail string
}

func NewSMTPClient(host string, port int, username, password, fromEmail string) (*SMTPClient, error) {
	if host == "" || fromEmail == "" {
		return nil, errors.New("smtp host and from email are required")
	}
	dialer := gomail.NewDialer(host, port, username, password)
	dialer.Timeout = 10 * time.Second

	return &SMTPClient{
		dialer:    dialer,
		fromEmail: fromEmail,
	}, nil
}

func (m *SMTPClient) Send(templateFile, username, email string, data any) (int, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return -1, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return -1, err
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return -1, err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", message.FormatAddress(m.fromEmail, FromName))
	message.SetHeader("To", email)
	message.SetHeader("Subject", subject.String())
	message.SetBody("text/plain", body.String())

	var retryErr error
	for i := 0; i < maxRetries; i++ {
		retryErr = m.dialer.DialAndSend(message)
		if retryErr == nil {
			return http.StatusOK, nil
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}

	return -1, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, retryErr)
}
