package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"intake-api/internal/content"
	"intake-api/internal/records"
)

var (
	errMalformedForm = errors.New("malformed form data")
	errTooManyFiles  = errors.New("too many files")
	errFieldTooLarge = errors.New("form field too large")
)

const (
	// maxFieldBytes bounds a single text field of a submission.
	maxFieldBytes = 1 << 20

	// maxNameAttempts bounds how far a generated name is moved forward when
	// its millisecond is already taken.
	maxNameAttempts = 1000
)

// fileRule says which multipart field carries files and how many are allowed.
type fileRule struct {
	field    string
	maxFiles int
}

// submission is a parsed form: text values plus the files already written
// to the content area, in receipt order.
type submission struct {
	values map[string]string
	files  []content.StoredFile
}

// value returns nil when the client did not send key.
func (s submission) value(key string) *string {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	return &v
}

func (s submission) paths() []string {
	out := make([]string, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.Path)
	}
	return out
}

// readSubmission streams a multipart body part by part, writing each file
// under rule.field to the content area as it arrives. Files under other
// fields are skipped. Non-multipart bodies (JSON or urlencoded) are read as
// values only.
func (s *Server) readSubmission(w http.ResponseWriter, r *http.Request, rule fileRule) (submission, error) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	sub := submission{values: make(map[string]string)}
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return sub, readPlainForm(r, sub.values)
	}
	if err != nil {
		return sub, fmt.Errorf("%w: %v", errMalformedForm, err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return sub, nil
		}
		if err != nil {
			return sub, malformed(err)
		}

		if part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			_ = part.Close()
			if err != nil {
				return sub, malformed(err)
			}
			if len(b) > maxFieldBytes {
				return sub, fmt.Errorf("%w: %s", errFieldTooLarge, part.FormName())
			}
			if _, seen := sub.values[part.FormName()]; !seen {
				sub.values[part.FormName()] = string(b)
			}
			continue
		}

		if part.FormName() != rule.field {
			_ = part.Close()
			continue
		}
		if len(sub.files) >= rule.maxFiles {
			_ = part.Close()
			return sub, errTooManyFiles
		}

		original := clientBaseName(part.FileName())
		if s.cfg.SanitizeFilenames {
			original = SanitizeFilename(original)
		}
		stored, err := s.saveUnique(r.Context(), original, part)
		_ = part.Close()
		if err != nil {
			return sub, err
		}
		s.metrics.RecordUpload(stored.Size)
		sub.files = append(sub.files, stored)
	}
}

// clientBaseName drops a Windows-style directory prefix (C:\Users\n\cv.pdf)
// that the multipart reader leaves in place.
func clientBaseName(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// saveUnique writes r under a generated name, moving the timestamp forward
// one millisecond while the name is taken.
func (s *Server) saveUnique(ctx context.Context, original string, r io.Reader) (content.StoredFile, error) {
	now := s.now()
	for attempt := 0; ; attempt++ {
		stored, err := s.cfg.Content.Save(ctx, content.GenerateName(now, original), r)
		if !errors.Is(err, content.ErrExist) || attempt == maxNameAttempts {
			return stored, err
		}
		now = now.Add(time.Millisecond)
	}
}

// malformed marks a body read failure as the client's fault, except for an
// exceeded size limit which keeps its own status.
func malformed(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformedForm, err)
}

func readPlainForm(r *http.Request, values map[string]string) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		raw := make(map[string]json.RawMessage)
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return malformed(err)
		}
		for k, v := range raw {
			var str string
			if err := json.Unmarshal(v, &str); err == nil {
				values[k] = str
			} else if string(v) != "null" {
				values[k] = string(v)
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return malformed(err)
		}
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
	}
	return nil
}

// writeSubmissionError maps a readSubmission failure to a response.
// saveMsg is used for anything that is not the client's fault.
func (s *Server) writeSubmissionError(w http.ResponseWriter, r *http.Request, err error, saveMsg string) {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, errTooManyFiles):
		writeError(w, http.StatusBadRequest, "Too many files")
	case errors.Is(err, errMalformedForm):
		writeError(w, http.StatusBadRequest, "Malformed form data")
	case errors.Is(err, content.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid file name")
	case errors.As(err, &mbe), errors.Is(err, errFieldTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
	default:
		Error("upload failed", map[string]interface{}{
			"rid":  RequestIDFromContext(r.Context()),
			"path": r.URL.Path,
		}, err)
		writeError(w, http.StatusInternalServerError, saveMsg)
	}
}

// parseServiceChoice returns nil when v is absent or not an integer.
func parseServiceChoice(v *string) *int {
	if v == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*v))
	if err != nil {
		return nil
	}
	return &n
}

// uploadHandler accepts a service-request form with up to MaxFiles
// attachments under "file", stores the record and notifies.
func (s *Server) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.readSubmission(w, r, fileRule{field: "file", maxFiles: s.cfg.MaxFiles})
		if err != nil {
			s.metrics.RecordSubmission("service_request", false)
			s.writeSubmissionError(w, r, err, "Error saving form data")
			return
		}

		fields := records.ServiceRequestFields{
			Name:          sub.value("name"),
			IDNumber:      sub.value("idNumber"),
			Phone:         sub.value("phone"),
			Email:         sub.value("email"),
			Manufacturer:  sub.value("manufacturer"),
			Model:         sub.value("model"),
			Loan:          sub.value("loan"),
			ServiceChoice: parseServiceChoice(sub.value("serviceChoice")),
			Files:         sub.paths(),
		}

		saved, err := s.cfg.Records.CreateServiceRequest(r.Context(), fields)
		if err != nil {
			s.metrics.RecordSubmission("service_request", false)
			Error("save service request failed", map[string]interface{}{
				"rid": RequestIDFromContext(r.Context()),
			}, err)
			writeError(w, http.StatusInternalServerError, "Error saving form data")
			return
		}
		s.metrics.RecordSubmission("service_request", true)
		Info("service request stored", map[string]interface{}{
			"rid":   RequestIDFromContext(r.Context()),
			"id":    saved.ID.String(),
			"files": len(saved.Files),
		})

		s.cfg.Email.DispatchServiceRequest(r.Context(), saved.ServiceRequestFields)
		writeMessage(w, "Form data uploaded successfully")
	}
}
