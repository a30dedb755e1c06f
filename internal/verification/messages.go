package verification

import (
	"fmt"

	"github.com/fixoo-edu/fixoo_api/internal/notification"
)

const securityWarning = "Kodni hech kimga bermang!"

func smsText(appName string, p Purpose, code string) string {
	var action string
	switch p {
	case PurposeRegister:
		action = "ro'yxatdan o'tish"
	case PurposeResetPassword:
		action = "parolingizni tiklash"
	default:
		action = "telefoningizni o'zgartirish"
	}
	return fmt.Sprintf("%s platformasida %s uchun tasdiqlash kodi: %s. %s", appName, action, code, securityWarning)
}

func emailSubject(appName string, p Purpose) string {
	switch p {
	case PurposeRegister:
		return appName + " - Ro'yxatdan o'tish tasdiqlash kodi"
	case PurposeResetPassword:
		return appName + " - Parolni tiklash tasdiqlash kodi"
	default:
		return appName + " - Emailni o'zgartirish tasdiqlash kodi"
	}
}

func buildMessage(appName string, p Purpose, c Channel, identifier, code string) (notification.Message, error) {
	if c == ChannelPhone {
		return notification.Message{
			Kind:        notification.KindOTP,
			Channel:     notification.ChannelSMS,
			Destination: identifier,
			Body:        smsText(appName, p, code),
		}, nil
	}

	subject := emailSubject(appName, p)
	html, err := notification.RenderOTPEmail(notification.OTPEmail{
		AppName: appName,
		Intro:   subject,
		Code:    code,
		Warning: securityWarning,
	})
	if err != nil {
		return notification.Message{}, fmt.Errorf("render otp email: %w", err)
	}
	return notification.Message{
		Kind:        notification.KindOTP,
		Channel:     notification.ChannelEmail,
		Destination: identifier,
		Subject:     subject,
		Body:        fmt.Sprintf("%s: %s. %s", subject, code, securityWarning),
		HTML:        html,
	}, nil
}
