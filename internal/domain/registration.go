package domain

import "time"

// RegistrationView is the read-only shape of a student as seen on the
// registration review screen. It is derived, never stored.
//
// Field mapping from Student (and its tenant, batch and payments):
//
//	ID                 Student.ID
//	TenantID           Student.TenantID
//	TenantCustomID     Tenant.CustomID
//	StudentCustomID    Student.CustomID
//	Name, PhotoURL     Student.Name, Student.PhotoURL
//	Phone, Address     Student.Phone, Student.Address
//	Standard           Student.Standard
//	BatchName          Batch.Name, "" when the student has no batch
//	TotalFee           tenant fee for Student.Standard, 0 when unconfigured
//	FeesPaid           sum of verified and pending payments
//	RegistrationSource Student.RegistrationSource
//	SubmittedAt        Student.CreatedAt
//	Status, Notes      Student.Status, Student.Notes
//	ApprovedBy/At      Student.ApprovedBy, Student.ApprovedAt
type RegistrationView struct {
	ID                 string        `json:"id"`
	TenantID           string        `json:"tuition_id"`
	TenantCustomID     string        `json:"tuition_custom_id"`
	StudentCustomID    string        `json:"student_custom_id"`
	Name               string        `json:"name"`
	PhotoURL           string        `json:"photo_url,omitempty"`
	Phone              string        `json:"phone"`
	Address            string        `json:"address"`
	Standard           string        `json:"standard"`
	BatchName          string        `json:"batch_name"`
	TotalFee           float64       `json:"total_fee"`
	FeesPaid           float64       `json:"fees_paid"`
	RegistrationSource string        `json:"registration_source"`
	SubmittedAt        time.Time     `json:"submitted_at"`
	Status             StudentStatus `json:"status"`
	Notes              string        `json:"notes,omitempty"`
	ApprovedBy         string        `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time    `json:"approved_at,omitempty"`
}

// NewRegistrationView projects a student. batch may be nil.
func NewRegistrationView(st Student, t Tenant, batch *Batch, payments []FeePayment) RegistrationView {
	v := RegistrationView{
		ID:                 st.ID,
		TenantID:           st.TenantID,
		TenantCustomID:     t.CustomID,
		StudentCustomID:    st.CustomID,
		Name:               st.Name,
		PhotoURL:           st.PhotoURL,
		Phone:              st.Phone,
		Address:            st.Address,
		Standard:           st.Standard,
		RegistrationSource: st.RegistrationSource,
		SubmittedAt:        st.CreatedAt,
		Status:             st.Status,
		Notes:              st.Notes,
		ApprovedBy:         st.ApprovedBy,
		ApprovedAt:         st.ApprovedAt,
	}
	if batch != nil {
		v.BatchName = batch.Name
	}
	v.TotalFee, _ = t.FeeFor(st.Standard)
	for _, p := range payments {
		if p.StudentID == st.ID && p.Status != PaymentRejected {
			v.FeesPaid += p.Amount
		}
	}
	return v
}
