package model

type DocumentKind string

const (
	DocumentKindReport       DocumentKind = "report"
	DocumentKindPrescription DocumentKind = "prescription"
	DocumentKindTreatment    DocumentKind = "treatment"
)

// AllDocumentKinds lists kinds in dashboard display order.
var AllDocumentKinds = []DocumentKind{
	DocumentKindReport,
	DocumentKindPrescription,
	DocumentKindTreatment,
}

func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindReport, DocumentKindPrescription, DocumentKindTreatment:
		return true
	}
	return false
}

type StaffRole string

const (
	StaffRoleAdmin        StaffRole = "admin"
	StaffRoleDoctor       StaffRole = "doctor"
	StaffRoleNurse        StaffRole = "nurse"
	StaffRoleReceptionist StaffRole = "receptionist"
)

type LinkStatus string

const (
	LinkStatusActive  LinkStatus = "active"
	LinkStatusExpired LinkStatus = "expired"
)
