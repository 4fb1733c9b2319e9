// Команда gensession интерактивно логинит пользовательский аккаунт и печатает
// строку сессии Telethon для TELETHON_SESSION.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/config"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/pr"
	"telegram-exportbot/internal/infra/storage"
	"telegram-exportbot/internal/telegram/auth"
)

func main() {
	envPath := flag.String("env", "assets/.env", "path to .env file with TELEGRAM_API_ID/TELEGRAM_API_HASH")
	phone := flag.String("phone", "", "phone number in international format; asked interactively when empty")
	outPath := flag.String("out", "", "also write the session string to this file (mode 0600)")
	flag.Parse()

	if err := pr.Init(); err != nil {
		logger.Fatal("failed to init terminal", zap.Error(err))
	}
	defer pr.Close()

	logger.Init("info")
	logger.SetWriters(pr.Stdout(), pr.Stderr())
	defer logger.Sync()

	creds, err := config.LoadAPI(*envPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if creds.APIID == 0 {
		creds.APIID = askAPIID()
	}
	if creds.APIHash == "" {
		creds.APIHash = ask("API hash: ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionString, err := auth.Login(ctx, auth.LoginConfig{
		APIID:    creds.APIID,
		APIHash:  creds.APIHash,
		TestDC:   creds.TestDC,
		Existing: creds.TelethonSession,
	}, auth.TerminalAuthenticator{PhoneNumber: *phone})
	if err != nil {
		logger.Fatal("login failed", zap.Error(err))
	}

	if *outPath != "" {
		if err := storage.WriteSecretFile(*outPath, []byte(sessionString+"\n")); err != nil {
			logger.Fatal("failed to write session file", zap.String("path", *outPath), zap.Error(err))
		}
		logger.Info("Session written", zap.String("path", *outPath))
	}

	pr.Println()
	pr.Println("TELETHON_SESSION=" + sessionString)
	pr.Println("Keep it secret: the string grants full access to the account.")
}

func ask(prompt string) string {
	value, err := pr.ReadLine(prompt)
	if err != nil {
		logger.Fatal("input aborted", zap.Error(err))
	}
	return value
}

func askAPIID() int {
	for {
		id, err := strconv.Atoi(ask("API ID: "))
		if err == nil && id > 0 {
			return id
		}
		pr.ErrPrintf("API ID must be a positive integer\n")
	}
}
