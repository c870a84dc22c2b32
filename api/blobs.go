package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jacentio/storefront/blob"
)

// formFile is the multipart field holding an upload.
const formFile = "file"

// UploadResponse is the body of POST /blob/{container}.
type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

// ShareUploadResponse is the body of POST /fileshare/{share}.
type ShareUploadResponse struct {
	FileName string `json:"fileName"`
}

// uploadedFile returns the multipart file of the request. The caller closes it.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	file, header, err := r.FormFile(formFile)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return nil, nil, false
	}
	return file, header, true
}

func (s *Server) handleUploadBlob(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	obj, err := s.blobs.Upload(r.Context(), mux.Vars(r)["container"], header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeBackendError(w, s.logger, "upload blob", err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{URL: obj.URL, FileName: obj.Key})
}

func (s *Server) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.blobs.List(r.Context(), mux.Vars(r)["container"], r.URL.Query().Get("prefix"))
	if err != nil {
		writeBackendError(w, s.logger, "list blobs", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDownloadBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.download(w, r, "download blob", vars["container"], vars["blob"], vars["blob"])
}

func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.blobs.Delete(r.Context(), vars["container"], vars["blob"]); err != nil {
		writeBackendError(w, s.logger, "delete blob", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadToShare(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	name, err := s.blobs.UploadToShare(r.Context(), mux.Vars(r)["share"], r.URL.Query().Get("directoryName"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeBackendError(w, s.logger, "upload to share", err)
		return
	}
	writeJSON(w, http.StatusOK, ShareUploadResponse{FileName: name})
}

func (s *Server) handleListShare(w http.ResponseWriter, r *http.Request) {
	entries, err := s.blobs.List(r.Context(), mux.Vars(r)["share"], r.URL.Query().Get("directoryName"))
	if err != nil {
		writeBackendError(w, s.logger, "list share", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDownloadFromShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := blob.ShareKey(r.URL.Query().Get("directoryName"), vars["file"])
	s.download(w, r, "download from share", vars["share"], key, vars["file"])
}

func (s *Server) handleDeleteFromShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := blob.ShareKey(r.URL.Query().Get("directoryName"), vars["file"])
	if err := s.blobs.Delete(r.Context(), vars["share"], key); err != nil {
		writeBackendError(w, s.logger, "delete from share", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// download streams an object as an attachment named filename.
func (s *Server) download(w http.ResponseWriter, r *http.Request, op, container, key, filename string) {
	body, obj, err := s.blobs.Download(r.Context(), container, key)
	if err != nil {
		writeBackendError(w, s.logger, op, err)
		return
	}
	defer body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("download interrupted", "container", container, "key", key, "error", err)
	}
}
