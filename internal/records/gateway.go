package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"intake-api/internal/docstore"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = docstore.ErrNotFound

const (
	applicantsCollection      = "applicants"
	serviceRequestsCollection = "form_data"
	vacanciesCollection       = "vacancies"
)

// Gateway gives typed access to the three record collections. It performs
// no validation: absent fields are stored as null.
type Gateway struct {
	store docstore.Store
}

func NewGateway(store docstore.Store) *Gateway {
	return &Gateway{store: store}
}

// Ping checks the underlying store.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func (g *Gateway) CreateApplicant(ctx context.Context, f ApplicantFields) (Applicant, error) {
	doc, err := g.store.Insert(ctx, applicantsCollection, f)
	if err != nil {
		return Applicant{}, fmt.Errorf("create applicant: %w", err)
	}
	var a Applicant
	if err := decode(doc, &a.Meta, &a.ApplicantFields); err != nil {
		return Applicant{}, err
	}
	return a, nil
}

func (g *Gateway) CreateServiceRequest(ctx context.Context, f ServiceRequestFields) (ServiceRequest, error) {
	if f.Files == nil {
		f.Files = []string{}
	}
	doc, err := g.store.Insert(ctx, serviceRequestsCollection, f)
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("create service request: %w", err)
	}
	var s ServiceRequest
	if err := decode(doc, &s.Meta, &s.ServiceRequestFields); err != nil {
		return ServiceRequest{}, err
	}
	return s, nil
}

func (g *Gateway) CreateVacancy(ctx context.Context, f VacancyFields) (Vacancy, error) {
	doc, err := g.store.Insert(ctx, vacanciesCollection, f)
	if err != nil {
		return Vacancy{}, fmt.Errorf("create vacancy: %w", err)
	}
	return decodeVacancy(doc)
}

// ListVacancies returns every vacancy, oldest first. Never nil.
func (g *Gateway) ListVacancies(ctx context.Context) ([]Vacancy, error) {
	docs, err := g.store.Find(ctx, vacanciesCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("list vacancies: %w", err)
	}
	out := make([]Vacancy, 0, len(docs))
	for _, doc := range docs {
		v, err := decodeVacancy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *Gateway) GetVacancy(ctx context.Context, id uuid.UUID) (Vacancy, error) {
	doc, err := g.store.Get(ctx, vacanciesCollection, id)
	if err != nil {
		return Vacancy{}, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	return decodeVacancy(doc)
}

// UpdateVacancy overwrites the supplied fields. Last write wins.
func (g *Gateway) UpdateVacancy(ctx context.Context, id uuid.UUID, u VacancyUpdate) (Vacancy, error) {
	if u.Empty() {
		return g.GetVacancy(ctx, id)
	}
	doc, err := g.store.Merge(ctx, vacanciesCollection, id, u)
	if err != nil {
		return Vacancy{}, fmt.Errorf("update vacancy %s: %w", id, err)
	}
	return decodeVacancy(doc)
}

// DeleteVacancy removes a vacancy. Deleting a missing id is not an error.
func (g *Gateway) DeleteVacancy(ctx context.Context, id uuid.UUID) error {
	if _, err := g.store.Delete(ctx, vacanciesCollection, id); err != nil {
		return fmt.Errorf("delete vacancy %s: %w", id, err)
	}
	return nil
}

func decodeVacancy(doc docstore.Document) (Vacancy, error) {
	var v Vacancy
	if err := decode(doc, &v.Meta, &v.VacancyFields); err != nil {
		return Vacancy{}, err
	}
	return v, nil
}

func decode(doc docstore.Document, meta *Meta, fields any) error {
	if err := json.Unmarshal(doc.Body, fields); err != nil {
		return fmt.Errorf("decode %s document %s: %w", doc.Collection, doc.ID, err)
	}
	meta.ID = doc.ID
	meta.CreatedAt = doc.CreatedAt
	return nil
}
