package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/incident-console/backend/pkg/httputil"
)

var allowedRAGUploadSuffixes = map[string]bool{".json": true, ".txt": true}

var rawEntryFieldsMergedAsMetadata = []string{
	"title", "summary", "scenario_code", "status", "type",
	"recovery_status", "actions", "created_at",
}

type ragDocumentsResponse struct {
	Documents interface{} `json:"documents"`
}

func (a *API) handleRAGDocuments(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ragDocumentsResponse{Documents: a.knowledge.Documents()})
}

type ragUploadResponse struct {
	Message   string   `json:"message"`
	Documents []string `json:"documents"`
}

// handleRAGUpload parses an uploaded .txt or .json file into one or more
// knowledge documents. A .txt file becomes one document named after the
// file; a .json file may carry a single object, an object with a
// "documents" array, or a top-level array, each entry contributing one
// document.
func (a *API) handleRAGUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "a multipart 'file' field is required", nil)
		return
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" {
		filename = "upload"
	}
	suffix := strings.ToLower(filepath.Ext(filename))
	if !allowedRAGUploadSuffixes[suffix] {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "only .json or .txt files are supported", nil)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "failed to read uploaded file", nil)
		return
	}
	if len(raw) == 0 {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "uploaded file is empty", nil)
		return
	}
	if !utf8.Valid(raw) {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "uploaded file must be UTF-8 encoded", nil)
		return
	}

	baseTitle := strings.TrimSuffix(filename, filepath.Ext(filename))
	if baseTitle == "" {
		baseTitle = "Uploaded RAG reference"
	}

	var keys []string
	if suffix == ".txt" {
		keys, err = a.ingestTextUpload(filename, baseTitle, string(raw))
	} else {
		keys, err = a.ingestJSONUpload(filename, baseTitle, raw)
	}
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ragUploadResponse{
		Message:   fmt.Sprintf("Uploaded %d RAG document(s).", len(keys)),
		Documents: keys,
	})
}

func (a *API) ingestTextUpload(filename, baseTitle, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("uploaded document is empty")
	}
	key, err := a.knowledge.RecordUpload(uuid.NewString(), baseTitle, text, map[string]interface{}{
		"source_filename": filename,
	})
	if err != nil {
		return nil, err
	}
	return []string{key}, nil
}

func (a *API) ingestJSONUpload(filename, baseTitle string, raw []byte) ([]string, error) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("uploaded JSON file is not valid")
	}

	entries, err := parseUploadedJSONDocuments(payload)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		title, content, metadata, err := normalizeUploadedEntry(entry, baseTitle, filename)
		if err != nil {
			return nil, err
		}
		key, err := a.knowledge.RecordUpload(uuid.NewString(), title, content, metadata)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parseUploadedJSONDocuments(payload interface{}) ([]map[string]interface{}, error) {
	var documents []interface{}
	switch v := payload.(type) {
	case []interface{}:
		documents = v
	case map[string]interface{}:
		if docList, ok := v["documents"].([]interface{}); ok {
			documents = docList
		} else {
			documents = []interface{}{v}
		}
	default:
		return nil, fmt.Errorf("uploaded JSON must be an object or an array of objects")
	}

	normalized := make([]map[string]interface{}, 0, len(documents))
	for _, entry := range documents {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("uploaded JSON documents must contain objects")
		}
		normalized = append(normalized, obj)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("uploaded JSON file does not contain any documents")
	}
	return normalized, nil
}

func normalizeUploadedEntry(entry map[string]interface{}, fallbackTitle, filename string) (title, content string, metadata map[string]interface{}, err error) {
	metadata = map[string]interface{}{}
	if entryMetadata, ok := entry["metadata"].(map[string]interface{}); ok {
		for k, v := range entryMetadata {
			metadata[k] = v
		}
	}

	for _, key := range rawEntryFieldsMergedAsMetadata {
		if value, present := entry[key]; present {
			if _, already := metadata[key]; !already {
				metadata[key] = value
			}
		}
	}

	metadata["source_filename"] = filename
	title = fallbackTitle
	if titleValue, ok := metadata["title"].(string); ok && strings.TrimSpace(titleValue) != "" {
		title = titleValue
	} else {
		metadata["title"] = title
	}

	for _, field := range []string{"content", "text", "body"} {
		if candidate, ok := entry[field].(string); ok && strings.TrimSpace(candidate) != "" {
			content = candidate
			break
		}
	}
	if content == "" {
		err = fmt.Errorf("JSON document must include a 'content' or 'text' field")
		return
	}

	return title, content, metadata, nil
}
