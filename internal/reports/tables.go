// Package reports builds the tenant reports (students, fees, attendance,
// monthly attendance summary, fee defaulters) as tabular sheets and writes
// them as CSV or XLSX.
package reports

import "github.com/JonMunkholm/tuitiondesk/internal/tabular"

// Group is the registry group of every report table.
const Group = "report"

// Column names shared by several reports.
const (
	ColRollNo     = "Roll No"
	ColName       = "Name"
	ColStandard   = "Standard"
	ColPhone      = "Phone"
	ColAddress    = "Address"
	ColBatchName  = "Batch Name"
	ColBatchTime  = "Batch Time"
	ColStudentID  = "Student ID"
	ColBatchID    = "Batch ID"
	ColTuitionID  = "Tuition ID"
	ColTotalFee   = "Total Fee"
	ColPaidFee    = "Paid Fee"
	ColRemaining  = "Remaining Fee"
	ColLastDate   = "Last Payment Date"
	ColLastMode   = "Last Payment Mode"
	ColDate       = "Date"
	ColStatus     = "Status"
	ColMarkedBy   = "Marked By"
	ColTotalDays  = "Total Days"
	ColPresent    = "Present"
	ColAbsent     = "Absent"
	ColLeave      = "Leave"
	ColAttendance = "Attendance %"
)

func fields(names ...string) []tabular.FieldSpec {
	out := make([]tabular.FieldSpec, len(names))
	for i, n := range names {
		out[i] = tabular.FieldSpec{Name: n}
	}
	return out
}

func register(key string, cols ...string) tabular.Table {
	return tabular.Register(tabular.Table{
		Key:        "report/" + key,
		Group:      Group,
		Layout:     tabular.LayoutNone,
		Name:       key,
		FieldSpecs: fields(cols...),
	})
}

var feeColumns = []string{
	ColRollNo, ColName, ColStandard, ColPhone, ColBatchName,
	ColTotalFee, ColPaidFee, ColRemaining, ColLastDate, ColLastMode,
	ColStudentID, ColBatchID, ColTuitionID,
}

var (
	StudentsTable = register(string(KindStudents),
		ColRollNo, ColName, ColStandard, ColPhone, ColAddress, ColBatchName, ColBatchTime,
		ColStudentID, ColBatchID, ColTuitionID)

	FeesTable = register(string(KindFees), feeColumns...)

	DefaultersTable = register(string(KindDefaulters), feeColumns...)

	AttendanceTable = register(string(KindAttendance),
		ColRollNo, ColName, ColStandard, ColPhone, ColBatchName,
		ColDate, ColStatus, ColMarkedBy,
		ColStudentID, ColBatchID, ColTuitionID)

	SummaryTable = register(string(KindAttendanceSummary),
		ColRollNo, ColName, ColStandard, ColPhone, ColBatchName,
		ColTotalDays, ColPresent, ColAbsent, ColLeave, ColAttendance,
		ColStudentID, ColBatchID, ColTuitionID)
)
