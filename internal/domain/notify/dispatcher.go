// Package notify рассылает готовый файл выгрузки всем администраторам.
// Одна попытка на получателя; сбой одного получателя логируется и не прерывает
// рассылку остальным.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/logger"
)

// DocumentSender отправляет файл с подписью в чат.
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// Failure — классифицированный отказ транспорта.
type Failure interface {
	error
	// Permanent: повтор той же отправки не поможет.
	Permanent() bool
	// RetryDelay — пауза, которую просит сервер (0, если не просил).
	RetryDelay() time.Duration
}

// FailureFields — поля лога для ошибки отправки: сама ошибка и, если транспорт
// её классифицировал, permanent и retry_after.
func FailureFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var f Failure
	if errors.As(err, &f) {
		fields = append(fields, zap.Bool("permanent", f.Permanent()))
		if d := f.RetryDelay(); d > 0 {
			fields = append(fields, zap.Duration("retry_after", d))
		}
	}
	return fields
}

// DeliveryError — неудачная доставка одному получателю.
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.Recipient, e.Err)
}

func (e DeliveryError) Unwrap() error { return e.Err }

// Report — итог рассылки.
type Report struct {
	Delivered []int64
	Failed    []DeliveryError
}

// Dispatcher рассылает документы по фиксированному списку получателей.
type Dispatcher struct {
	sender     DocumentSender
	recipients []int64
}

// NewDispatcher копирует recipients: список неизменяем после создания.
func NewDispatcher(sender DocumentSender, recipients []int64) *Dispatcher {
	return &Dispatcher{
		sender:     sender,
		recipients: append([]int64(nil), recipients...),
	}
}

// NotifyAdmins отправляет path с caption каждому получателю. Никогда не возвращает ошибку.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, path, caption string) Report {
	var rep Report
	if len(d.recipients) == 0 {
		logger.Warn("No admins configured; export not delivered", zap.String("path", path))
		return rep
	}

	for _, id := range d.recipients {
		if err := d.sender.SendDocument(ctx, id, path, caption); err != nil {
			derr := DeliveryError{Recipient: id, Err: err}
			rep.Failed = append(rep.Failed, derr)
			logger.Error("Export delivery failed", append([]zap.Field{zap.Int64("recipient", id)}, FailureFields(err)...)...)
			continue
		}
		rep.Delivered = append(rep.Delivered, id)
	}

	logger.Info("Export broadcast finished",
		zap.String("path", path),
		zap.Int("delivered", len(rep.Delivered)),
		zap.Int("failed", len(rep.Failed)),
	)
	return rep
}
