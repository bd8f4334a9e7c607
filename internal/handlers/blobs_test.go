package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/lqv/messenger/internal/blob"
)

func newBlobHandler(t *testing.T) *BlobHandler {
	t.Helper()
	blobs, err := blob.New(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	return &BlobHandler{Blobs: blobs}
}

func multipartBody(t *testing.T, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	handler := newBlobHandler(t)

	body, contentType := multipartBody(t, "pic.png", []byte("png bytes"))
	req, _ := http.NewRequest("POST", "/blobs/images", body)
	req.Header.Set("Content-Type", contentType)
	req = mux.SetURLVars(req, map[string]string{"category": "images"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Upload).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Upload returned %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["url"] != "http://localhost:8080/blobs/images/pic.png" {
		t.Errorf("url = %q", resp["url"])
	}

	req, _ = http.NewRequest("GET", "/blobs/images/pic.png", nil)
	req = mux.SetURLVars(req, map[string]string{"category": "images", "name": "pic.png"})
	rr = httptest.NewRecorder()
	http.HandlerFunc(handler.Serve).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "png bytes" {
		t.Errorf("Serve returned %d, body %q", rr.Code, rr.Body.String())
	}
}

func TestUploadUnknownCategory(t *testing.T) {
	handler := newBlobHandler(t)

	body, contentType := multipartBody(t, "x.bin", []byte("x"))
	req, _ := http.NewRequest("POST", "/blobs/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = mux.SetURLVars(req, map[string]string{"category": "documents"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Upload).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestServeMissing(t *testing.T) {
	handler := newBlobHandler(t)

	req, _ := http.NewRequest("GET", "/blobs/images/ghost.png", nil)
	req = mux.SetURLVars(req, map[string]string{"category": "images", "name": "ghost.png"})
	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Serve).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
