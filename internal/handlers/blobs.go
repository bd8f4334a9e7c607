package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lqv/messenger/internal/blob"
)

type BlobHandler struct {
	Blobs *blob.Service
}

const maxUploadBytes = 32 << 20

func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}

	fileName := r.FormValue("filename")
	if fileName == "" {
		fileName = header.Filename
	}

	url, err := h.Blobs.Upload(r.Context(), data, fileName, category)
	if errors.Is(err, blob.ErrUnknownCategory) {
		http.Error(w, "Unknown category", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

func (h *BlobHandler) Serve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	path, err := h.Blobs.FilePath(vars["category"], vars["name"])
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *BlobHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	url, err := h.Blobs.Resolve(r.Context(), path)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"url": url})
}
