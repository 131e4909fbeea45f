package model

import (
	"time"
)

// PatientPayload is the raw, untyped output of the data generation
// collaborator before it has been checked against the input schema.
type PatientPayload map[string]interface{}

// RequiredPatientFields lists the keys a generated payload must carry.
var RequiredPatientFields = []string{
	"fullName",
	"email",
	"birthday",
	"ssn",
	"creditCard",
	"expiryDate",
	"cvv",
}

// PatientInput is the validated input schema for a patient record. Formats
// (SSN as XXX-XX-XXXX, card as four groups of four digits, expiry as MM/YY)
// are enforced by the client only.
type PatientInput struct {
	FullName   string `json:"fullName" db:"full_name" validate:"required"`
	Email      string `json:"email" db:"email" validate:"required,email"`
	Birthday   string `json:"birthday" db:"birthday" validate:"required"`
	SSN        string `json:"ssn" db:"ssn" validate:"required"`
	CreditCard string `json:"creditCard" db:"credit_card" validate:"required"`
	ExpiryDate string `json:"expiryDate" db:"expiry_date" validate:"required"`
	CVV        string `json:"cvv" db:"cvv" validate:"required"`
}

// PatientRecord is a stored patient. AzureBlobURL stays nil until the
// snapshot upload succeeds and is written at most once per record.
type PatientRecord struct {
	ID string `json:"id" db:"id"`
	PatientInput
	AzureBlobURL *string   `json:"azureBlobUrl" db:"azure_blob_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Clone returns a deep copy so callers never share the stored pointer.
func (p *PatientRecord) Clone() *PatientRecord {
	if p == nil {
		return nil
	}
	out := *p
	if p.AzureBlobURL != nil {
		url := *p.AzureBlobURL
		out.AzureBlobURL = &url
	}
	return &out
}

// PatientSnapshot is the JSON document persisted to blob storage.
type PatientSnapshot struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Birthday   string    `json:"birthday"`
	SSN        string    `json:"ssn"`
	CreditCard string    `json:"creditCard"`
	ExpiryDate string    `json:"expiryDate"`
	CVV        string    `json:"cvv"`
	CreatedAt  time.Time `json:"createdAt"`
	UploadedAt time.Time `json:"uploadedAt"`
	// Encrypted lists the fields whose values are sealed ciphertext.
	Encrypted []string `json:"encrypted,omitempty"`
}

// NewPatientSnapshot copies a record into its upload representation.
func NewPatientSnapshot(p *PatientRecord, uploadedAt time.Time) *PatientSnapshot {
	return &PatientSnapshot{
		ID:         p.ID,
		FullName:   p.FullName,
		Email:      p.Email,
		Birthday:   p.Birthday,
		SSN:        p.SSN,
		CreditCard: p.CreditCard,
		ExpiryDate: p.ExpiryDate,
		CVV:        p.CVV,
		CreatedAt:  p.CreatedAt,
		UploadedAt: uploadedAt,
	}
}
