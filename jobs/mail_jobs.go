package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-crm/internal/jobs"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Link paths appended to the site root in mailed URLs.
const (
	ActivationPath   = "activate/{uid}/{token}"
	ResetConfirmPath = "password/reset/confirm/{uid}/{token}"
)

// MailJob delivers the account emails.
type MailJob struct {
	Users   users.Repository
	Tokens  *users.TokenGenerator
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMailJob wires dependencies for the mail handlers.
func NewMailJob(repo users.Repository, tokens *users.TokenGenerator, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	return &MailJob{Users: repo, Tokens: tokens, Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handlers lists the mail task handlers for worker registration.
func (j *MailJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskActivation, Handler: j.Handle},
		{Type: TaskResetPassword, Handler: j.Handle},
		{Type: TaskResetPasswordConfirm, Handler: j.Handle},
	}
}

// Handle processes one mail task. The account is read fresh; when it no
// longer exists the task ends without retry. Delivery failures are returned
// so the queue retries them.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("mail job: handler not configured")
	}
	var payload MailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Error("decode mail payload", slog.String("task", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(t.Type())
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("task", t.Type()), slog.Int64("user_id", payload.Context.UserID))

	user, err := j.Users.GetByID(ctx, payload.Context.UserID)
	if errors.Is(err, httpx.ErrNotFound) {
		logger.Warn("mail recipient no longer exists")
		tracker.Skip()
		return nil
	}
	if err != nil {
		resultErr = fmt.Errorf("load user: %w", err)
		return resultErr
	}

	msg, err := j.compose(t.Type(), payload, user)
	if err != nil {
		// Templates and signing keys do not change between attempts.
		resultErr = fmt.Errorf("compose %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		logger.Error("compose mail", slog.Any("error", err))
		return resultErr
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		resultErr = err
		logger.Error("send mail", slog.Any("error", err))
		return resultErr
	}
	logger.Info("mail sent", slog.Int("recipients", len(msg.To)))
	return nil
}

func (j *MailJob) compose(taskType string, payload MailPayload, user *users.User) (Message, error) {
	mc := payload.Context
	data := mailData{SiteName: mc.SiteName, Name: user.Username}
	if name := strings.TrimSpace(user.FirstName); name != "" {
		data.Name = name
	}
	var (
		path    string
		purpose users.TokenPurpose
	)
	switch taskType {
	case TaskActivation:
		path, purpose = ActivationPath, users.PurposeActivation
	case TaskResetPassword:
		path, purpose = ResetConfirmPath, users.PurposePasswordReset
	}
	if path != "" {
		token, err := j.Tokens.Make(user, purpose)
		if err != nil {
			return Message{}, err
		}
		data.URL = siteURL(mc, path, users.EncodeUID(user.ID), token)
	}
	return renderMail(taskType, data, payload.Recipients)
}

func siteURL(mc users.MailContext, path, uid, token string) string {
	protocol := mc.Protocol
	if protocol == "" {
		protocol = "http"
	}
	path = strings.NewReplacer("{uid}", uid, "{token}", token).Replace(path)
	return protocol + "://" + strings.TrimSuffix(mc.Domain, "/") + "/" + path
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *MailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
