package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/uploads"
)

const maxUploadSize = 20 << 20

type UploadHandler struct {
	svc *uploads.Service
}

func NewUploadHandler(svc *uploads.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Upload stores the multipart "file" field as a temporary upload. It is
// removed by cleanup unless attached.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, apperr.Validation("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Validation("file field is required"))
		return
	}
	defer file.Close()

	u, err := h.svc.Register(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UploadHandler) Attach(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Attach(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
