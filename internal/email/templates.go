package email

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
)

var ErrUnknownTemplate = errors.New("unknown template")

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

// templates are keyed by order event type.
var templates = map[string]messageTemplate{
	"order.created": mustTemplate("order.created",
		"Order {{.order_id}} received",
		"We received your order {{.order_id}} ({{.payment_method}}).\n"+
			"Total: {{.total_price}}\n"+
			"Estimated delivery: {{.arrives_at}}\n"),
	"order.paid": mustTemplate("order.paid",
		"Payment confirmed for order {{.order_id}}",
		"Your payment of {{.total_price}} for order {{.order_id}} was confirmed.\n"+
			"Estimated delivery: {{.arrives_at}}\n"),
	"order.cancelled": mustTemplate("order.cancelled",
		"Order {{.order_id}} cancelled",
		"Your order {{.order_id}} has been cancelled.\n"),
	"order.refunded": mustTemplate("order.refunded",
		"Refund issued for order {{.order_id}}",
		"A refund of {{.total_price}} for order {{.order_id}} has been issued to your card.\n"),
	"order.delivered": mustTemplate("order.delivered",
		"Order {{.order_id}} delivered",
		"Your order {{.order_id}} has been delivered. Thank you for shopping with us.\n"),
}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func Render(name, to string, data map[string]any) (Message, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}

	return Message{To: to, Subject: subject.String(), Body: body.String()}, nil
}
