package notification

import (
	"bytes"
	"html/template"
)

var otpEmailTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; background: #f5f6fa; padding: 24px;">
    <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 24px;">
      <h2 style="margin-top: 0;">{{.AppName}}</h2>
      <p>{{.Intro}}</p>
      <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">{{.Code}}</p>
      <p style="color: #888888;">{{.Warning}}</p>
    </div>
  </body>
</html>
`))

// OTPEmail holds the values rendered into the one-time code email.
type OTPEmail struct {
	AppName string
	Intro   string
	Code    string
	Warning string
}

// RenderOTPEmail renders the HTML body of a one-time code email.
func RenderOTPEmail(data OTPEmail) (string, error) {
	var buf bytes.Buffer
	if err := otpEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
