package api

import (
	"net/http"
	"strconv"

	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/models"
)

// maxTemplateSize limits uploaded task databases to 64 MiB
const maxTemplateSize = 64 << 20

// handleUploadTask creates a new task from a multipart upload carrying
// the task metadata and its template database file
func (s *Server) handleUploadTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxTemplateSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}

	price := 0
	if raw := r.FormValue("price"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "price must be an integer")
			return
		}
		price = parsed
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	task, err := s.catalog.Create(r.Context(), catalog.CreateTaskInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Level:       models.Level(r.FormValue("level")),
		Answer:      r.FormValue("answer"),
		Price:       price,
		Template:    file,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"task_id": task.ID,
		"task":    task.Summary(),
	})
}
