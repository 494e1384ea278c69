package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"intake-api/internal/records"
)

// maxJSONBytes bounds vacancy and login request bodies.
const maxJSONBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(v)
}

func (s *Server) listVacanciesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.cfg.Records.ListVacancies(r.Context())
		if err != nil {
			Error("list vacancies failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context())}, err)
			writeError(w, http.StatusInternalServerError, "Error fetching vacancies")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) getVacancyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Vacancy not found")
			return
		}
		v, err := s.cfg.Records.GetVacancy(r.Context(), id)
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Vacancy not found")
			return
		}
		if err != nil {
			Error("get vacancy failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context()), "id": id.String()}, err)
			writeError(w, http.StatusInternalServerError, "Error fetching vacancy")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) createVacancyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body records.VacancyFields
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Error adding vacancy")
			return
		}
		v, err := s.cfg.Records.CreateVacancy(r.Context(), body)
		if err != nil {
			Error("create vacancy failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context())}, err)
			writeError(w, http.StatusBadRequest, "Error adding vacancy")
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

// updateVacancyHandler overwrites only the fields present in the body.
func (s *Server) updateVacancyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Error updating vacancy")
			return
		}
		var body records.VacancyUpdate
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Error updating vacancy")
			return
		}
		v, err := s.cfg.Records.UpdateVacancy(r.Context(), id, body)
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Vacancy not found")
			return
		}
		if err != nil {
			Error("update vacancy failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context()), "id": id.String()}, err)
			writeError(w, http.StatusBadRequest, "Error updating vacancy")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) deleteVacancyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Error deleting vacancy")
			return
		}
		if err := s.cfg.Records.DeleteVacancy(r.Context(), id); err != nil {
			Error("delete vacancy failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context()), "id": id.String()}, err)
			writeError(w, http.StatusBadRequest, "Error deleting vacancy")
			return
		}
		writeMessage(w, "Vacancy deleted successfully")
	}
}

func (s *Server) allowedIPsHandler(key string, ips []string) http.HandlerFunc {
	if ips == nil {
		ips = []string{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{key: ips})
	}
}
