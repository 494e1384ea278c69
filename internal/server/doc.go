// Package server implements the HTTP surface of the intake API: applicant
// and service-request submissions with uploads, vacancy CRUD, the login
// check and the allow-listed IP endpoints. It wires the access guard, CORS,
// request logging, metrics and best-effort email notification around the
// record gateway and the content area.
package server
