package email

import (
	"fmt"
	"html"
)

// NotificationEmailData carries one in-app notification rendered as an email.
type NotificationEmailData struct {
	FirstName string
	Email     string
	Title     string
	Body      string
	ActionURL string
	AppName   string
}

// BuildNotificationEmail renders a generic notification email with an
// optional call-to-action link.
func BuildNotificationEmail(data NotificationEmailData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "Karsaz"
	}

	firstName := data.FirstName
	if firstName == "" {
		firstName = "there"
	}

	subject := fmt.Sprintf("%s: %s", appName, data.Title)

	textBody := fmt.Sprintf(`Hi %s,

%s
`, firstName, data.Body)
	if data.ActionURL != "" {
		textBody += fmt.Sprintf("\nView details: %s\n", data.ActionURL)
	}
	textBody += fmt.Sprintf("\nThanks,\nThe %s Team", appName)

	action := ""
	if data.ActionURL != "" {
		action = fmt.Sprintf(`<p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">View details</a>
    </p>`, html.EscapeString(data.ActionURL))
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>%s</p>
    %s
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		html.EscapeString(firstName), html.EscapeString(data.Body), action, html.EscapeString(appName))

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// PaymentReceiptData describes the money side of an escrow event.
type PaymentReceiptData struct {
	FirstName     string
	Email         string
	AppName       string
	Headline      string
	AppointmentID string
	PaymentID     string
	Amount        string
	Currency      string
}

// BuildPaymentReceiptEmail renders a plain receipt for payment, release and
// refund events.
func BuildPaymentReceiptEmail(data PaymentReceiptData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "Karsaz"
	}
	firstName := data.FirstName
	if firstName == "" {
		firstName = "there"
	}

	subject := fmt.Sprintf("%s: %s", appName, data.Headline)

	textBody := fmt.Sprintf(`Hi %s,

%s

Appointment: %s
Payment:     %s
Amount:      %s %s

Thanks,
The %s Team`,
		firstName, data.Headline, data.AppointmentID, data.PaymentID, data.Amount, data.Currency, appName)

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
	}
}
