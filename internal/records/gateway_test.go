package records

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"intake-api/internal/docstore"
)

func strPtr(s string) *string { return &s }

func newTestGateway() *Gateway {
	return NewGateway(docstore.NewMemory())
}

func TestCreateVacancy_ListGrowsByOne(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	before, err := g.ListVacancies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if before == nil || len(before) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", before)
	}

	v, err := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("Engineer"), Description: strPtr("Build things"), ApplyLink: strPtr("https://x/apply")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.ID == uuid.Nil || v.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", v.Meta)
	}

	after, err := g.ListVacancies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("expected 1 vacancy, got %d", len(after))
	}
	if !reflect.DeepEqual(after[0].VacancyFields, v.VacancyFields) || after[0].ID != v.ID {
		t.Fatalf("listed vacancy %+v does not match created %+v", after[0], v)
	}
}

func TestUpdateVacancy_OnlySuppliedFields(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	a, _ := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("A"), Description: strPtr("first"), ApplyLink: strPtr("https://a")})
	b, _ := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("B"), Description: strPtr("second"), ApplyLink: strPtr("https://b")})

	updated, err := g.UpdateVacancy(ctx, a.ID, VacancyUpdate{Title: strPtr("A2"), Address: strPtr("Main St")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if Text(updated.Title) != "A2" || Text(updated.Description) != "first" || Text(updated.ApplyLink) != "https://a" {
		t.Fatalf("unexpected merge result: %+v", updated.VacancyFields)
	}
	if updated.Address == nil || *updated.Address != "Main St" {
		t.Fatalf("expected address to be set, got %v", updated.Address)
	}

	got, err := g.GetVacancy(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if Text(got.Title) != "A2" {
		t.Fatalf("fetch does not reflect update: %+v", got.VacancyFields)
	}

	other, err := g.GetVacancy(ctx, b.ID)
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if !reflect.DeepEqual(other.VacancyFields, b.VacancyFields) {
		t.Fatalf("unrelated vacancy changed: %+v", other.VacancyFields)
	}
}

func TestUpdateVacancy_EmptyUpdateReturnsCurrent(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	v, _ := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("T")})
	got, err := g.UpdateVacancy(ctx, v.ID, VacancyUpdate{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if Text(got.Title) != "T" {
		t.Fatalf("expected unchanged vacancy, got %+v", got.VacancyFields)
	}
}

func TestUpdateVacancy_Missing(t *testing.T) {
	g := newTestGateway()
	_, err := g.UpdateVacancy(context.Background(), uuid.New(), VacancyUpdate{Title: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteVacancy(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	v, _ := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("gone")})
	if err := g.DeleteVacancy(ctx, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := g.GetVacancy(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := g.DeleteVacancy(ctx, v.ID); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
}

func TestCreateApplicant_EmptyCV(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	a, err := g.CreateApplicant(ctx, ApplicantFields{FirstName: strPtr("Nino"), VacancyName: strPtr("Engineer")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.CV != "" {
		t.Fatalf("expected empty cv, got %q", a.CV)
	}
	if a.Email != nil || a.LastName != nil {
		t.Fatalf("expected absent fields to stay nil, got %+v", a.ApplicantFields)
	}
	if a.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
}

func TestCreateServiceRequest_FilesOrder(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()
	choice := 2

	s, err := g.CreateServiceRequest(ctx, ServiceRequestFields{
		Name:          strPtr("Levan"),
		ServiceChoice: &choice,
		Files:         []string{"uploads/1-a.pdf", "uploads/2-b.pdf"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(s.Files) != 2 || s.Files[0] != "uploads/1-a.pdf" || s.Files[1] != "uploads/2-b.pdf" {
		t.Fatalf("unexpected files: %v", s.Files)
	}
	if s.ServiceChoice == nil || *s.ServiceChoice != 2 {
		t.Fatalf("unexpected service choice: %v", s.ServiceChoice)
	}

	empty, err := g.CreateServiceRequest(ctx, ServiceRequestFields{Name: strPtr("none")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if empty.Files == nil || len(empty.Files) != 0 {
		t.Fatalf("expected empty non-nil files, got %#v", empty.Files)
	}
	if empty.ServiceChoice != nil {
		t.Fatalf("expected nil service choice, got %v", *empty.ServiceChoice)
	}
}

func TestCollectionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway()

	a, _ := g.CreateApplicant(ctx, ApplicantFields{FirstName: strPtr("x")})
	if _, err := g.GetVacancy(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("applicant id must not resolve as vacancy, got %v", err)
	}
	list, _ := g.ListVacancies(ctx)
	if len(list) != 0 {
		t.Fatalf("expected no vacancies, got %d", len(list))
	}
}

func TestAbsentFieldsStoredAsNull(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	g := NewGateway(store)

	if _, err := g.CreateApplicant(ctx, ApplicantFields{FirstName: strPtr("Nika"), Email: strPtr("")}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreateVacancy(ctx, VacancyFields{Title: strPtr("Engineer")}); err != nil {
		t.Fatal(err)
	}

	raw := func(collection string) map[string]any {
		docs, err := store.Find(ctx, collection, nil)
		if err != nil || len(docs) != 1 {
			t.Fatalf("find %s: %v (%d docs)", collection, err, len(docs))
		}
		var m map[string]any
		if err := json.Unmarshal(docs[0].Body, &m); err != nil {
			t.Fatal(err)
		}
		return m
	}

	applicant := raw(applicantsCollection)
	if v, ok := applicant["lastName"]; !ok || v != nil {
		t.Fatalf("lastName should be null, got %#v", v)
	}
	if applicant["email"] != "" {
		t.Fatalf("an empty email must stay distinct from a missing one, got %#v", applicant["email"])
	}
	if applicant["cv"] != "" {
		t.Fatalf("cv should be empty string, got %#v", applicant["cv"])
	}

	vacancy := raw(vacanciesCollection)
	if vacancy["description"] != nil || vacancy["applyLink"] != nil {
		t.Fatalf("missing vacancy fields should be null: %v", vacancy)
	}
}

func TestText(t *testing.T) {
	if Text(nil) != "" || Text(strPtr("x")) != "x" {
		t.Fatal("Text should dereference or return empty")
	}
}
