package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationPush  NotificationType = "push"
)

type Notification struct {
	Type      NotificationType
	Recipient string
	Subject   string
	Message   string
	Priority  int
	Metadata  map[string]string
	CreatedAt time.Time
}

type EmailSender interface {
	SendEmail(to, subject, body string) error
}

type PushSender interface {
	SendPush(deviceID, title, message string) error
}

// Notifier fans notifications out to delivery channels through a small
// worker pool so slow providers never block scheduler ticks.
type Notifier struct {
	emailSender  EmailSender
	pushSender   PushSender
	messageQueue chan Notification
	workers      int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewNotifier(emailSender EmailSender, pushSender PushSender, workers int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	n := &Notifier{
		emailSender:  emailSender,
		pushSender:   pushSender,
		messageQueue: make(chan Notification, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	n.startWorkers()

	return n
}

// SendPaymentReminder warns the user about an upcoming auto-payment,
// including whether the configured funding sources cover it.
func (n *Notifier) SendPaymentReminder(ctx context.Context, recipient, paymentName string, dayOfMonth int, required, available decimal.Decimal) error {
	message := fmt.Sprintf("%s is scheduled to be charged on day %d of this month.", paymentName, dayOfMonth)
	if available.LessThan(required) {
		shortfall := required.Sub(available)
		message += fmt.Sprintf(" Insufficient balance: need %s, available %s, short %s.",
			required.StringFixed(2), available.StringFixed(2), shortfall.StringFixed(2))
	} else {
		message += " Funding sources have sufficient balance."
	}

	return n.enqueue(ctx, Notification{
		Type:      NotificationPush,
		Recipient: recipient,
		Subject:   "Upcoming auto-payment",
		Message:   message,
		Priority:  5,
		Metadata:  map[string]string{"payment": paymentName},
		CreatedAt: time.Now(),
	})
}

// SendShortfallAlert reports an unmet payment remainder under the NOTIFY
// policy.
func (n *Notifier) SendShortfallAlert(ctx context.Context, recipient, paymentName string, paid, shortfall decimal.Decimal) error {
	message := fmt.Sprintf(
		"Auto-payment %s could not be fully settled: %s was deducted, %s remains unpaid and needs manual handling.",
		paymentName, paid.StringFixed(2), shortfall.StringFixed(2))

	return n.enqueue(ctx, Notification{
		Type:      NotificationEmail,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Insufficient funds: %s", paymentName),
		Message:   message,
		Priority:  10,
		Metadata:  map[string]string{"payment": paymentName},
		CreatedAt: time.Now(),
	})
}

// SendIncomeReminder announces an auto-income due within the next days.
func (n *Notifier) SendIncomeReminder(ctx context.Context, recipient, incomeName string, amount decimal.Decimal, daysUntil int) error {
	return n.enqueue(ctx, Notification{
		Type:      NotificationPush,
		Recipient: recipient,
		Subject:   "Upcoming auto-income",
		Message:   fmt.Sprintf("%s of %s will be credited in %d day(s).", incomeName, amount.StringFixed(2), daysUntil),
		Priority:  3,
		Metadata:  map[string]string{"income": incomeName},
		CreatedAt: time.Now(),
	})
}

func (n *Notifier) enqueue(ctx context.Context, notification Notification) error {
	select {
	case n.messageQueue <- notification:
		n.logger.Info("Notification queued",
			slog.String("type", string(notification.Type)),
			slog.String("recipient", notification.Recipient),
			slog.String("subject", notification.Subject))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) startWorkers() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
}

func (n *Notifier) worker(id int) {
	defer n.wg.Done()

	n.logger.Info("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-n.messageQueue:
			n.deliver(msg, id)
		case <-n.shutdownChan:
			n.logger.Info("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (n *Notifier) deliver(msg Notification, workerID int) {
	startTime := time.Now()
	var err error

	switch msg.Type {
	case NotificationEmail:
		err = n.emailSender.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case NotificationPush:
		err = n.pushSender.SendPush(msg.Recipient, msg.Subject, msg.Message)
	default:
		err = fmt.Errorf("unknown notification type: %s", msg.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		n.logger.Error("Failed to send notification",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
		return
	}

	n.logger.Info("Notification sent",
		slog.String("type", string(msg.Type)),
		slog.String("recipient", msg.Recipient),
		slog.Int("worker_id", workerID),
		slog.Duration("duration", duration))
}

func (n *Notifier) Shutdown(ctx context.Context) error {
	close(n.shutdownChan)

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockEmailSender struct {
	SentEmails []struct {
		To      string
		Subject string
		Body    string
	}
}

func (m *MockEmailSender) SendEmail(to, subject, body string) error {
	m.SentEmails = append(m.SentEmails, struct {
		To      string
		Subject string
		Body    string
	}{to, subject, body})
	return nil
}

type MockPushSender struct {
	SentPushes []struct {
		DeviceID string
		Title    string
		Message  string
	}
}

func (m *MockPushSender) SendPush(deviceID, title, message string) error {
	m.SentPushes = append(m.SentPushes, struct {
		DeviceID string
		Title    string
		Message  string
	}{deviceID, title, message})
	return nil
}
