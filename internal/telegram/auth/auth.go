// Package auth — интерактивный вход пользовательского аккаунта для утилиты
// gensession. TerminalAuthenticator читает телефон, код и пароль 2FA из терминала,
// Login проводит авторизацию через gotd и возвращает строку сессии Telethon
// для TELETHON_SESSION.

package auth

import (
	"context"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/term"

	"telegram-exportbot/internal/infra/pr"
)

// LineReader читает строку после приглашения. По умолчанию pr.ReadLine.
type LineReader func(prompt string) (string, error)

// TerminalAuthenticator реализует auth.UserAuthenticator.
type TerminalAuthenticator struct {
	// PhoneNumber — телефон в формате E.164. Пустой запрашивается у пользователя.
	PhoneNumber string
	// ReadLine подменяется в тестах.
	ReadLine LineReader
	// ReadPassword читает пароль без эха; nil означает term.ReadPassword(stdin).
	ReadPassword func() (string, error)
}

var _ auth.UserAuthenticator = TerminalAuthenticator{}

func (t TerminalAuthenticator) readLine(prompt string) (string, error) {
	if t.ReadLine != nil {
		return t.ReadLine(prompt)
	}
	return pr.ReadLine(prompt)
}

func (t TerminalAuthenticator) Phone(_ context.Context) (string, error) {
	if t.PhoneNumber != "" {
		return t.PhoneNumber, nil
	}
	phone, err := t.readLine("Phone number (+79991234567): ")
	if err != nil {
		return "", err
	}
	if phone == "" {
		return "", errors.New("empty phone number")
	}
	return phone, nil
}

// Code запрашивает код подтверждения. Тип доставки кода печатается как подсказка.
func (t TerminalAuthenticator) Code(_ context.Context, sentCode *tg.AuthSentCode) (string, error) {
	if sentCode != nil && sentCode.Type != nil {
		pr.Printf("Code sent via %s\n", sentCode.Type.TypeName())
	}
	return t.readLine("Enter the code from Telegram: ")
}

// Password считывает пароль двухфакторной аутентификации без отображения ввода.
func (t TerminalAuthenticator) Password(_ context.Context) (string, error) {
	if t.ReadPassword != nil {
		return t.ReadPassword()
	}
	pr.Print("Enter 2FA password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	pr.Println()
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}

// AcceptTermsOfService принимает только "y"/"yes" в любом регистре.
func (t TerminalAuthenticator) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	pr.Printf("Telegram Terms of Service: %s\n", tos.Text)
	resp, err := t.readLine("Do you accept? (y/n): ")
	if err != nil {
		return err
	}
	switch strings.ToLower(resp) {
	case "y", "yes":
		return nil
	default:
		return errors.New("user did not accept terms of service")
	}
}

// SignUp вызывается для незарегистрированного номера. Фамилия опциональна.
func (t TerminalAuthenticator) SignUp(_ context.Context) (auth.UserInfo, error) {
	firstName, err := t.readLine("Enter your first name: ")
	if err != nil {
		return auth.UserInfo{}, err
	}
	lastName, _ := t.readLine("Enter your last name (optional): ")
	return auth.UserInfo{
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}
