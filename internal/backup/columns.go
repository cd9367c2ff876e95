// Package backup exports one tenant as a ZIP of CSV files and restores such
// an archive into a store.
//
// The pipeline is split the same way in both directions: a Mapper turns
// internal references into durable keys (custom IDs, "Name (Phone)"), the
// Projector flattens entities into rows of the registered archive tables,
// the writer and reader move those rows in and out of a ZIP, and the
// Reconciler replays them in dependency order.
package backup

import "github.com/JonMunkholm/tuitiondesk/internal/tabular"

// ContractVersion is the archive format version recorded in manifest.yaml.
// Bump the major part when a column is renamed or removed.
const ContractVersion = "1.1"

// Column names. They are the join contract between export and import.
const (
	ColTuitionID   = "Tuition ID"
	ColName        = "Name"
	ColAddress     = "Address"
	ColOwner       = "Owner"
	ColContactInfo = "Contact Info"
	ColSubTeachers = "Sub-Teachers"
	ColFees        = "Fees Structure"

	ColBatchID  = "Batch ID"
	ColStandard = "Standard"
	ColTeachers = "Teachers"
	ColSchedule = "Schedule"

	ColTitle      = "Title"
	ColFileURL    = "File URL"
	ColUploadedBy = "Uploaded By"

	ColRollNo    = "Roll No"
	ColStudentID = "Student ID"
	ColPhone     = "Phone"

	ColTotalFee        = "Total Fee"
	ColPaidFee         = "Paid Fee"
	ColRemainingFee    = "Remaining Fee"
	ColLastPaymentDate = "Last Payment Date"
	ColLastPaymentMode = "Last Payment Mode"
	ColNote            = "Note"

	ColDate     = "Date"
	ColStatus   = "Status"
	ColMarkedBy = "Marked By"
)

// Group is the registry group of every archive table.
const Group = "archive"

// Archive tables, shared by the writer and the reader.
var (
	TuitionTable = tabular.Register(tabular.Table{
		Key:    "archive/tuition",
		Group:  Group,
		Layout: tabular.LayoutSingleton,
		Name:   "tuition.csv",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColTuitionID},
			{Name: ColName, Required: true},
			{Name: ColAddress},
			{Name: ColOwner, Required: true},
			{Name: ColContactInfo},
			{Name: ColSubTeachers},
			{Name: ColFees},
		},
	})

	BatchesTable = tabular.Register(tabular.Table{
		Key:    "archive/batches",
		Group:  Group,
		Layout: tabular.LayoutSingleton,
		Name:   "batches.csv",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColBatchID},
			{Name: ColName, Required: true},
			{Name: ColStandard},
			{Name: ColTeachers},
			{Name: ColSchedule},
		},
	})

	PapersTable = tabular.Register(tabular.Table{
		Key:    "archive/papers",
		Group:  Group,
		Layout: tabular.LayoutSingleton,
		Name:   "papers.csv",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColTitle, Required: true},
			{Name: ColStandard},
			{Name: ColFileURL},
			{Name: ColUploadedBy},
		},
	})

	StudentsTable = tabular.Register(tabular.Table{
		Key:    "archive/students",
		Group:  Group,
		Layout: tabular.LayoutByBatch,
		Name:   "students",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColRollNo},
			{Name: ColStudentID},
			{Name: ColName, Required: true},
			{Name: ColPhone},
			{Name: ColAddress},
			{Name: ColBatchID},
		},
	})

	FeesTable = tabular.Register(tabular.Table{
		Key:    "archive/fees",
		Group:  Group,
		Layout: tabular.LayoutByBatch,
		Name:   "fees",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColRollNo},
			{Name: ColStudentID, Required: true},
			{Name: ColName},
			{Name: ColTotalFee},
			{Name: ColPaidFee, Required: true},
			{Name: ColRemainingFee},
			{Name: ColLastPaymentDate},
			{Name: ColLastPaymentMode},
			{Name: ColNote},
		},
	})

	AttendanceTable = tabular.Register(tabular.Table{
		Key:    "archive/attendance",
		Group:  Group,
		Layout: tabular.LayoutByDay,
		Name:   "attendance",
		FieldSpecs: []tabular.FieldSpec{
			{Name: ColRollNo},
			{Name: ColStudentID, Required: true},
			{Name: ColName},
			{Name: ColBatchID},
			{Name: ColDate},
			{Name: ColStatus, Required: true},
			{Name: ColMarkedBy},
			{Name: ColNote},
		},
	})
)

// Tables returns the archive tables in restore order.
func Tables() []tabular.Table {
	return []tabular.Table{TuitionTable, BatchesTable, PapersTable, StudentsTable, FeesTable, AttendanceTable}
}
