package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	AuditTurnStart AuditEventType = "turn_start"
	AuditTurnEnd   AuditEventType = "turn_end"

	AuditJobTransition AuditEventType = "job_transition"
	AuditPollTick      AuditEventType = "poll_tick"
)

// AuditLogger writes structured audit events under the "audit" logger name.
type AuditLogger struct {
	sessionID string
	category  Category
}

// Audit returns an audit logger with no session correlation.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession returns an audit logger correlated to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, category: CategorySession}
}

func (a *AuditLogger) log(event AuditEventType, fields ...zap.Field) {
	fields = append(fields, zap.String("event", string(event)))
	if a.sessionID != "" {
		fields = append(fields, zap.String("session", a.sessionID))
	}
	if a.category != "" {
		fields = append(fields, zap.String("cat", string(a.category)))
	}
	Base().Named("audit").Info(string(event), fields...)
}

// LLMCall records one provider round trip.
func (a *AuditLogger) LLMCall(op, model string, tokens int, dur time.Duration, err error) {
	if err != nil {
		a.log(AuditLLMError, zap.String("op", op), zap.String("model", model), zap.Duration("dur", dur), zap.Error(err))
		return
	}
	a.log(AuditLLMResponse, zap.String("op", op), zap.String("model", model), zap.Int("tokens", tokens), zap.Duration("dur", dur))
}

// TurnStart records the start of an assistant turn.
func (a *AuditLogger) TurnStart(turn int, capability string) {
	a.log(AuditTurnStart, zap.Int("turn", turn), zap.String("capability", capability))
}

// TurnEnd records the end of an assistant turn.
func (a *AuditLogger) TurnEnd(turn int, dur time.Duration, success bool) {
	a.log(AuditTurnEnd, zap.Int("turn", turn), zap.Duration("dur", dur), zap.Bool("success", success))
}

// JobTransition records a reconstruction job status change.
func (a *AuditLogger) JobTransition(jobID, from, to string) {
	a.log(AuditJobTransition, zap.String("job", jobID), zap.String("from", from), zap.String("to", to))
}

// PollTick records one video operation status fetch.
func (a *AuditLogger) PollTick(operation string, attempt int, done bool) {
	a.log(AuditPollTick, zap.String("operation", operation), zap.Int("attempt", attempt), zap.Bool("done", done))
}
