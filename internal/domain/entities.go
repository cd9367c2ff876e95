// Package domain holds the tuition-center entities and the arithmetic that is
// derived from them (fee balances, attendance percentages, grades).
//
// Every tenant-owned entity carries exactly one TenantID. IDs are internal
// surrogate keys chosen by the store; CustomID fields hold the durable human
// IDs (TUI-n, BATCH-n, STU-n) that survive export and import.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is a user's role within the system.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "tuition_owner"
	RoleSubTeacher Role = "sub_teacher"
)

// User is a staff member. Users have no durable custom ID; they are
// identified across installations by phone number.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string    `bson:"phone" json:"phone"`
	Role      Role      `bson:"role" json:"role"`
	TenantID  string    `bson:"tuition_id,omitempty" json:"tuitionId,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// FeeStructure is one entry of a tenant's fee table.
type FeeStructure struct {
	Standard string  `bson:"standard" json:"standard"`
	TotalFee float64 `bson:"total_fee" json:"total_fee"`
}

// Tenant is one tuition center.
type Tenant struct {
	ID            string         `bson:"_id" json:"id"`
	CustomID      string         `bson:"custom_id" json:"customId"`
	Name          string         `bson:"name" json:"name"`
	Address       string         `bson:"address" json:"address"`
	ContactInfo   string         `bson:"contact_info" json:"contactInfo"`
	OwnerID       string         `bson:"owner_id" json:"ownerId"`
	SubTeacherIDs []string       `bson:"sub_teachers" json:"subTeachers"`
	Standards     []string       `bson:"standards" json:"standards"`
	Fees          []FeeStructure `bson:"fees_structure" json:"feesStructure"`
	CreatedAt     time.Time      `bson:"created_at" json:"createdAt"`
}

// FeeFor returns the configured total fee for a standard.
func (t Tenant) FeeFor(standard string) (float64, bool) {
	for _, f := range t.Fees {
		if f.Standard == standard {
			return f.TotalFee, true
		}
	}
	return 0, false
}

// Schedule is when a batch meets.
type Schedule struct {
	Days []string `bson:"days" json:"days"`
	Time string   `bson:"time" json:"time"`
}

// String renders the schedule as "Mon, Wed @ 17:00".
func (s Schedule) String() string {
	days := joinNonEmpty(s.Days, ", ")
	switch {
	case days == "" && s.Time == "":
		return ""
	case s.Time == "":
		return days
	case days == "":
		return "@ " + s.Time
	}
	return days + " @ " + s.Time
}

// Batch is a class group inside a tenant.
type Batch struct {
	ID         string    `bson:"_id" json:"id"`
	CustomID   string    `bson:"custom_id" json:"customId"`
	TenantID   string    `bson:"tuition_id" json:"tuitionId"`
	Name       string    `bson:"name" json:"name"`
	Standard   string    `bson:"standard" json:"standard"`
	TeacherIDs []string  `bson:"teachers" json:"teachers"`
	StudentIDs []string  `bson:"students" json:"students"`
	Schedule   Schedule  `bson:"schedule" json:"schedule"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// StudentStatus is a student's enrollment lifecycle state.
type StudentStatus string

const (
	StudentPending  StudentStatus = "pending"
	StudentApproved StudentStatus = "approved"
	StudentRejected StudentStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentPending, StudentApproved, StudentRejected:
		return true
	}
	return false
}

// Registration sources.
const (
	SourceManual       = "manual"
	SourcePublicForm   = "public_form"
	SourceBackupImport = "backup_import"
)

// Student is an enrolled or applying student.
type Student struct {
	ID                 string        `bson:"_id" json:"id"`
	CustomID           string        `bson:"custom_id" json:"customId"`
	TenantID           string        `bson:"tuition_id" json:"tuitionId"`
	Name               string        `bson:"name" json:"name"`
	Phone              string        `bson:"phone" json:"phone"`
	Address            string        `bson:"address" json:"address"`
	PhotoURL           string        `bson:"photo_url,omitempty" json:"photoUrl,omitempty"`
	Standard           string        `bson:"standard" json:"standard"`
	BatchID            string        `bson:"batch_id,omitempty" json:"batchId,omitempty"`
	RegistrationSource string        `bson:"registration_source" json:"registrationSource"`
	Status             StudentStatus `bson:"status" json:"status"`
	Notes              string        `bson:"notes,omitempty" json:"notes,omitempty"`
	ApprovedBy         string        `bson:"approved_by,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time    `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	CreatedAt          time.Time     `bson:"created_at" json:"createdAt"`
}

// PaymentMode is how a fee payment was made.
type PaymentMode string

const (
	ModeCash         PaymentMode = "cash"
	ModeOnline       PaymentMode = "online"
	ModeUPI          PaymentMode = "upi"
	ModeBankTransfer PaymentMode = "bank_transfer"
)

// ParsePaymentMode accepts the canonical values case-insensitively, plus
// "bank transfer" with a space.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch m := PaymentMode(normalizeEnum(s)); m {
	case ModeCash, ModeOnline, ModeUPI, ModeBankTransfer:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment mode %q", s)
}

// PaymentStatus is a payment's verification state.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentVerified, PaymentRejected:
		return true
	}
	return false
}

// PaymentSource records how a payment entered the system.
type PaymentSource string

const (
	PaymentSourceManual  PaymentSource = "manual"
	PaymentSourceStudent PaymentSource = "student_verification"
	PaymentSourceLink    PaymentSource = "link_verification"
	PaymentSourceBackup  PaymentSource = "backup_import"
)

// FeePayment is one payment against a student's fees.
type FeePayment struct {
	ID         string        `bson:"_id" json:"id"`
	TenantID   string        `bson:"tuition_id" json:"tuitionId"`
	StudentID  string        `bson:"student_id" json:"studentId"`
	Amount     float64       `bson:"amount" json:"amount"`
	Mode       PaymentMode   `bson:"mode" json:"mode"`
	Date       time.Time     `bson:"date" json:"date"`
	Status     PaymentStatus `bson:"status" json:"status"`
	Source     PaymentSource `bson:"payment_source" json:"paymentSource"`
	VerifiedBy string        `bson:"verified_by,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time    `bson:"verified_at,omitempty" json:"verifiedAt,omitempty"`
	Note       string        `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt  time.Time     `bson:"created_at" json:"createdAt"`
}

// Verified reports whether the payment counts toward the paid fee.
func (p FeePayment) Verified() bool { return p.Status == PaymentVerified }

// AttendanceStatus is a single day's mark.
type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
	Leave   AttendanceStatus = "leave"
)

// ParseAttendanceStatus accepts the canonical values case-insensitively.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch st := AttendanceStatus(normalizeEnum(s)); st {
	case Present, Absent, Leave:
		return st, nil
	}
	return "", fmt.Errorf("unknown attendance status %q", s)
}

// Attendance is one mark per (student, batch, calendar day).
type Attendance struct {
	ID        string           `bson:"_id" json:"id"`
	TenantID  string           `bson:"tuition_id" json:"tuitionId"`
	BatchID   string           `bson:"batch_id" json:"batchId"`
	StudentID string           `bson:"student_id" json:"studentId"`
	Date      time.Time        `bson:"date" json:"date"`
	Status    AttendanceStatus `bson:"status" json:"status"`
	MarkedBy  string           `bson:"marked_by,omitempty" json:"markedBy,omitempty"`
	Note      string           `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"createdAt"`
}

// Paper is uploaded exam material.
type Paper struct {
	ID         string    `bson:"_id" json:"id"`
	TenantID   string    `bson:"tuition_id" json:"tuitionId"`
	Standard   string    `bson:"standard" json:"standard"`
	Title      string    `bson:"title" json:"title"`
	FileURL    string    `bson:"file_url" json:"fileUrl"`
	UploadedBy string    `bson:"uploaded_by,omitempty" json:"uploadedBy,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// AbsenceReason is a student's explanation for missing a day, sent through
// the public form. It names the student by roll number and batch name as
// typed, so it is not linked to a Student record.
type AbsenceReason struct {
	ID          string    `bson:"_id" json:"id"`
	TenantID    string    `bson:"tuition_id" json:"tuitionId"`
	StudentName string    `bson:"student_name" json:"studentName"`
	RollNumber  string    `bson:"roll_number" json:"rollNumber"`
	Phone       string    `bson:"phone_number" json:"phoneNumber"`
	Standard    string    `bson:"standard" json:"standard"`
	BatchName   string    `bson:"batch_name" json:"batchName"`
	Date        time.Time `bson:"date" json:"date"`
	Reason      string    `bson:"reason" json:"reason"`
	CreatedAt   time.Time `bson:"created_at" json:"submittedAt"`
}

// SameAbsence reports whether a and b are for the same roll number on the
// same UTC day. One reason is accepted per roll number and day.
func (a AbsenceReason) SameAbsence(b AbsenceReason) bool {
	return a.TenantID == b.TenantID &&
		strings.EqualFold(strings.TrimSpace(a.RollNumber), strings.TrimSpace(b.RollNumber)) &&
		Day(a.Date).Equal(Day(b.Date))
}
