package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailSink e-mails moderator invitations to the invited address.
type MailSink struct {
	from          string
	publicBaseURL string
	dialer        mailDialer
}

func NewMailSink(cfg SMTPConfig, publicBaseURL string) *MailSink {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &MailSink{
		from:          cfg.From,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		dialer:        d,
	}
}

func (s *MailSink) Name() string { return "mail" }

func (s *MailSink) Accepts(eventType string) bool {
	return eventType == EventModeratorInvited
}

func (s *MailSink) Deliver(_ context.Context, ev Event) error {
	var p ModeratorInvited
	if err := ev.Decode(&p); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", p.Email)
	m.SetHeader("Subject", "You have been invited to moderate the wiki")
	m.SetBody("text/html", InviteHTML(s.publicBaseURL))
	return s.dialer.DialAndSend(m)
}

// InviteHTML renders the invitation body.
func InviteHTML(publicBaseURL string) string {
	link := html.EscapeString(publicBaseURL + "/wiki/register")
	return fmt.Sprintf(`<p>Hello,</p><p>You have been invited to become a <b>moderator</b> of the wiki.</p><p>Register with this e-mail address at <a href="%s">%s</a> and your account will receive moderator rights.</p>`, link, link)
}
