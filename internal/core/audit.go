package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionExport             AuditAction = "backup_export"
	ActionImport             AuditAction = "backup_import"
	ActionBackfill           AuditAction = "custom_id_backfill"
	ActionRegistrationReview AuditAction = "registration_review"
	ActionPaymentVerify      AuditAction = "payment_verify"
	ActionPaymentReject      AuditAction = "payment_reject"
	ActionLinkIssued         AuditAction = "link_issued"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry is one audited action.
type AuditEntry struct {
	Action    AuditAction
	Severity  AuditSeverity
	TenantID  string
	Subject   string // ID of the record acted on
	Actor     Actor
	IPAddress string
	UserAgent string
	Detail    []any // extra slog key/value pairs
	At        time.Time
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport:
		return SeverityCritical
	case ActionBackfill, ActionExport:
		return SeverityHigh
	case ActionRegistrationReview, ActionPaymentVerify, ActionPaymentReject:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// audit emits e as a structured log record tagged audit=true. Actor and
// client details are taken from ctx when the entry leaves them empty.
func (s *Service) audit(ctx context.Context, e AuditEntry) {
	if e.Severity == "" {
		e.Severity = determineSeverity(e.Action)
	}
	if e.Actor == (Actor{}) {
		e.Actor = ActorFromContext(ctx)
	}
	if e.IPAddress == "" {
		e.IPAddress = GetIPAddressFromContext(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = GetUserAgentFromContext(ctx)
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}

	attrs := []any{
		"audit", true,
		"action", string(e.Action),
		"severity", string(e.Severity),
		"tenant_id", e.TenantID,
		"subject", e.Subject,
		"actor", e.Actor.UserID,
		"actor_role", e.Actor.Role,
		"ip", e.IPAddress,
		"at", e.At,
	}
	attrs = append(attrs, e.Detail...)

	logger := s.auditLog
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger.Log(ctx, slog.LevelInfo, "audit", attrs...)
}
