package server

import (
	"net/http"

	"intake-api/internal/records"
)

// submitHandler accepts a job application with an optional "cv" file,
// stores the applicant and notifies.
func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.readSubmission(w, r, fileRule{field: "cv", maxFiles: 1})
		if err != nil {
			s.metrics.RecordSubmission("applicant", false)
			s.writeSubmissionError(w, r, err, "Error saving applicant")
			return
		}

		fields := records.ApplicantFields{
			FirstName:   sub.value("firstName"),
			LastName:    sub.value("lastName"),
			IDNumber:    sub.value("idNumber"),
			DOB:         sub.value("dob"),
			Location:    sub.value("location"),
			Email:       sub.value("email"),
			Number:      sub.value("number"),
			VacancyName: sub.value("vacancyName"),
		}
		if len(sub.files) > 0 {
			fields.CV = sub.files[0].Name
		}

		saved, err := s.cfg.Records.CreateApplicant(r.Context(), fields)
		if err != nil {
			s.metrics.RecordSubmission("applicant", false)
			Error("save applicant failed", map[string]interface{}{
				"rid": RequestIDFromContext(r.Context()),
			}, err)
			writeError(w, http.StatusInternalServerError, "Error saving applicant")
			return
		}
		s.metrics.RecordSubmission("applicant", true)
		Info("applicant stored", map[string]interface{}{
			"rid":     RequestIDFromContext(r.Context()),
			"id":      saved.ID.String(),
			"vacancy": records.Text(saved.VacancyName),
		})

		s.cfg.Email.DispatchApplicant(r.Context(), saved.ApplicantFields)
		writeMessage(w, "Applicant submitted successfully")
	}
}
