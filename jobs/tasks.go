package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskResetPassword mails password reset instructions.
	TaskResetPassword = "mail:reset_password"
	// TaskResetPasswordConfirm mails the confirmation of a completed reset.
	TaskResetPasswordConfirm = "mail:reset_password_confirm"
	// TaskActivation mails the account activation link.
	TaskActivation = "mail:activation"
)

// MailRetryDelay is the fixed pause between attempts of a mail task.
const MailRetryDelay = 60 * time.Second

// MailPayload is the payload of every mail task. The context carries only the
// account id; the account itself is loaded when the task runs.
type MailPayload struct {
	Context    users.MailContext `json:"context"`
	Recipients []string          `json:"recipients"`
}

// NewMailTask constructs a mail task of the given type.
func NewMailTask(taskType string, payload MailPayload) (*asynq.Task, error) {
	if !IsMailTask(taskType) {
		return nil, fmt.Errorf("jobs: %q is not a mail task", taskType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// IsMailTask reports whether taskType belongs to the mail family.
func IsMailTask(taskType string) bool {
	return strings.HasPrefix(taskType, "mail:")
}

// RetryDelay waits MailRetryDelay between mail attempts and falls back to
// the asynq exponential backoff for anything else.
func RetryDelay(n int, err error, t *asynq.Task) time.Duration {
	if t != nil && IsMailTask(t.Type()) {
		return MailRetryDelay
	}
	return asynq.DefaultRetryDelayFunc(n, err, t)
}
