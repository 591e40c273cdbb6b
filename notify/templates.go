// ABOUTME: Plain-text subjects and bodies for booking notifications
// ABOUTME: One text/template pair per notification kind
package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/harperreed/consult/models"
)

// Message is a rendered notification.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

type templateData struct {
	Name          string
	BookingID     string
	Start         time.Time
	End           time.Time
	Minutes       int
	Inquiry       string
	PreviousStart *time.Time
}

var funcs = template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format("Monday, January 2, 2006 at 15:04 MST") },
	"day":  func(t time.Time) string { return t.UTC().Format("Jan 2") },
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(name + ".body").Funcs(funcs).Parse(body)),
	}
}

var templates = map[models.NotificationTemplate]messageTemplate{
	models.TemplateConfirmation: mustTemplate("confirmation",
		`Consultation booked for {{day .Start}}`,
		`Hi {{.Name}},

Your {{.Minutes}} minute consultation is booked for {{when .Start}}.
{{- if .Inquiry}}

Topic: {{.Inquiry}}
{{- end}}

Booking reference: {{.BookingID}}
`),
	models.TemplateRescheduled: mustTemplate("rescheduled",
		`Consultation moved to {{day .Start}}`,
		`Hi {{.Name}},

Your consultation has moved
{{- if .PreviousStart}} from {{when .PreviousStart}}{{end}} to {{when .Start}} ({{.Minutes}} minutes).

Booking reference: {{.BookingID}}
`),
	models.TemplateCancelled: mustTemplate("cancelled",
		`Consultation on {{day .Start}} cancelled`,
		`Hi {{.Name}},

Your consultation on {{when .Start}} has been cancelled.

Booking reference: {{.BookingID}}
`),
}

// Render builds the message for n.
func Render(n models.Notification) (Message, error) {
	tmpl, ok := templates[n.Template]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification template %q", n.Template)
	}

	name := n.RecipientName
	if name == "" {
		name = n.Booking.Name
	}
	data := templateData{
		Name:          name,
		BookingID:     n.Booking.ID.String(),
		Start:         n.Booking.StartTime,
		End:           n.Booking.EndTime(),
		Minutes:       int(n.Booking.Duration),
		Inquiry:       n.Booking.Inquiry,
		PreviousStart: n.PreviousStart,
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to render body: %w", err)
	}

	to := n.Recipient
	if to == "" {
		to = n.Booking.Email
	}
	return Message{To: to, ToName: name, Subject: subject.String(), Body: body.String()}, nil
}
