// Package records defines the applicant, service-request and vacancy
// documents and the gateway that persists them.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Meta is the store-managed part of every record.
type Meta struct {
	ID        uuid.UUID `json:"_id"`
	CreatedAt time.Time `json:"createdAt"`
}

// ApplicantFields is what a job applicant submits. Fields the client left
// out are nil and stored as null. CV holds the generated name of the stored
// upload, or "" when none was attached.
type ApplicantFields struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	IDNumber    *string `json:"idNumber"`
	DOB         *string `json:"dob"`
	Location    *string `json:"location"`
	Email       *string `json:"email"`
	Number      *string `json:"number"`
	CV          string  `json:"cv"`
	VacancyName *string `json:"vacancyName"`
}

type Applicant struct {
	Meta
	ApplicantFields
}

// ServiceRequestFields is a generic service form. Absent fields are nil.
// Files are stored paths in upload order.
type ServiceRequestFields struct {
	Name          *string  `json:"name"`
	IDNumber      *string  `json:"idNumber"`
	Phone         *string  `json:"phone"`
	Email         *string  `json:"email"`
	Manufacturer  *string  `json:"manufacturer"`
	Model         *string  `json:"model"`
	Loan          *string  `json:"loan"`
	ServiceChoice *int     `json:"serviceChoice"`
	Files         []string `json:"files"`
}

type ServiceRequest struct {
	Meta
	ServiceRequestFields
}

// VacancyFields is a job posting. Fields missing from the request body
// are nil.
type VacancyFields struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ApplyLink   *string `json:"applyLink"`
	Address     *string `json:"address"`
}

type Vacancy struct {
	Meta
	VacancyFields
}

// VacancyUpdate carries the fields of a PUT. Nil fields are left untouched.
type VacancyUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ApplyLink   *string `json:"applyLink,omitempty"`
	Address     *string `json:"address,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u VacancyUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.ApplyLink == nil && u.Address == nil
}

// Text returns *p, or "" for a nil field.
func Text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
