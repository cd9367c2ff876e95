// Package core provides the business logic of tuitiondesk.
//
// This package holds every operation independent of any transport. It is
// used by the HTTP handlers in internal/web and by the tuitionctl CLI.
//
// # Architecture
//
//   - Service: the entry point for all operations. It owns a store.Store,
//     a tokens.Store for public links and an ImportLimiter.
//   - Backup: Export and Import delegate to internal/backup, adding the
//     limiter, upload size cap, logging and audit.
//   - Reports: Report loads a tenant once and hands it to internal/reports.
//   - Day to day: MarkAttendance, RecordPayment, VerifyPayment and
//     RejectPayment.
//   - Public links: registration and payment links are tokens with a TTL;
//     SubmitRegistration and SubmitPaymentLink redeem them.
//
// # Input Validation
//
// Request structs carry go-playground/validator tags. Failures are returned
// as *ValidationError listing every bad field by its JSON name.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - BAK001-BAK003: archive errors (format, missing tuition.csv, size)
//   - IMP001-IMP002: import errors (unresolved owner, busy)
//   - REQ001-REQ006: request errors (missing/invalid parameters, no records, duplicates)
//   - AUTH001-AUTH003: link and access errors
//   - DB001-DB006: store errors
//
// # Audit Logging
//
// Exports, imports, backfills, registration reviews and payment decisions
// emit structured log records tagged audit=true with a severity:
//
//   - Low: link issuance
//   - Medium: registration reviews, payment verification
//   - High: exports, custom-ID backfill
//   - Critical: imports
package core
