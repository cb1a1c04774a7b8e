package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
)

// profilePicField is the multipart form field carrying the image.
const profilePicField = "profilePic"

func (h *handlers) uploadPic(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	if r.ContentLength > h.maxUploadBytes {
		h.writeError(w, r, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, err)
			return
		}
		h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(profilePicField)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: missing %s file", common.ErrInvalidInput, profilePicField))
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}

	attachment, err := h.media.Upload(r.Context(), services.UploadInput{
		AccountID:   current.ID,
		Body:        body,
		ContentType: header.Header.Get("Content-Type"),
		FileName:    header.Filename,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (h *handlers) getPic(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	attachment, err := h.media.Get(r.Context(), current.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attachment)
}

func (h *handlers) downloadPic(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	attachment, body, err := h.media.Download(r.Context(), current.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) deletePic(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	if err := h.media.Delete(r.Context(), current.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
