package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/models"
)

// maxAvatarSize limits avatar uploads to 8 MiB
const maxAvatarSize = 8 << 20

// handleMe returns the authenticated user's profile
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, user.Profile())
}

// handleUpdateProfile applies a partial profile edit
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			respondError(w, http.StatusBadRequest, "invalid_request", "username cannot be empty")
			return
		}
		user.Username = username
	}
	if req.Description != nil {
		user.Description = *req.Description
	}

	if err := s.repo.UpdateUser(r.Context(), user); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user.Profile())
}

// handleUploadAvatar stores a new avatar image and drops the old one
func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		respondError(w, http.StatusBadRequest, "invalid_request", "file must be an image")
		return
	}

	key := uuid.New().String() + filepath.Ext(header.Filename)
	if err := s.avatars.Put(key, file); err != nil {
		respondDomainError(w, err)
		return
	}

	oldKey := user.Avatar
	user.Avatar = key
	if err := s.repo.UpdateUser(r.Context(), user); err != nil {
		respondDomainError(w, err)
		return
	}

	if oldKey != "" {
		if err := s.avatars.Delete(oldKey); err != nil {
			slog.Warn("failed to remove old avatar", "key", oldKey, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, user.Profile())
}

// handleAvatarFile serves a stored avatar image
func (s *Server) handleAvatarFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "file")

	rc, err := s.avatars.Open(key)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "avatar not found")
			return
		}
		respondDomainError(w, err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("failed to stream avatar", "key", key, "error", err)
	}
}

// handleProgress returns a user's solving progress by username
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	progress, err := s.solver.Progress(r.Context(), username)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}
