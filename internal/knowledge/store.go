// Package knowledge implements the console's retrieval-augmented knowledge
// store: a persistent, doc_key-addressed map of reference documents (seeded
// scenarios, executed/deferred action plans, incident reports, and
// uploads), searchable by a metadata filter combined with either a term-
// overlap similarity score or, when the query is empty, plain recency.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/logger"
)

// Store is the RAG knowledge store. One mutex guards the document map and
// its on-disk mirror; this mutex is never held while the State Store's
// mutex is also held, and the reverse order is never taken either --
// callers must only ever acquire the State Store's lock first.
type Store struct {
	mu   sync.Mutex
	path string
	docs map[string]domain.KnowledgeDocument
	log  *logger.Logger

	index termIndex
}

// New constructs a Store persisting to dataDir/documents.json, loading any
// existing documents from disk.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		path: filepath.Join(dataDir, "documents.json"),
		docs: make(map[string]domain.KnowledgeDocument),
		log:  logger.NewDefault("knowledge-store"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read documents file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var docs map[string]domain.KnowledgeDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		s.log.WithError(err).Warn("documents file is corrupt, starting empty")
		return nil
	}
	s.docs = docs
	return nil
}

// persist rewrites the documents file atomically: write to a temp file in
// the same directory, then rename over the final path. A crash mid-write
// leaves the previous file intact.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp documents file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename documents file: %w", err)
	}
	s.index.invalidate()
	return nil
}

// doc_key builders, per the key policy.

func ScenarioKey(code string) string { return "scenario:" + code }
func ExecutedKey(executionID string) string {
	return fmt.Sprintf("action_execution:%s:executed", executionID)
}
func DeferredKey(executionID string) string {
	return fmt.Sprintf("action_execution:%s:deferred", executionID)
}
func ReportKey(reportID string) string { return "incident_report:" + reportID }
func UploadedKey(id string) string     { return "uploaded:" + id }

// add inserts doc if its key is not already present. Insertion is
// idempotent: a second add for the same key is a no-op.
func (s *Store) add(doc domain.KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.DocKey]; exists {
		return nil
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.docs[doc.DocKey] = doc
	return s.persist()
}

// Bootstrap seeds one reference document per scenario.
func (s *Store) Bootstrap(scenarios []domain.AlertScenario) error {
	for _, sc := range scenarios {
		doc := domain.KnowledgeDocument{
			DocKey:  ScenarioKey(sc.Code),
			Content: sc.Description + " " + strings.Join(sc.Hypotheses, " "),
			Metadata: map[string]interface{}{
				"type":            domain.DocTypeScenario,
				"scenario_code":   sc.Code,
				"status":          domain.DocStatusReference,
				"recovery_status": domain.DocRecoveryNotApplicable,
				"title":           sc.Title,
				"summary":         sc.Description,
				"actions":         sc.Actions,
			},
		}
		if err := s.add(doc); err != nil {
			return err
		}
	}
	return nil
}

// RecordExecuted writes the action_execution:<id>:executed document.
func (s *Store) RecordExecuted(exec domain.ActionExecution) error {
	doc := domain.KnowledgeDocument{
		DocKey:  ExecutedKey(exec.ID),
		Content: strings.Join(exec.Actions, "; "),
		Metadata: map[string]interface{}{
			"type":            domain.DocTypeActionExecution,
			"scenario_code":   exec.ScenarioCode,
			"status":          domain.DocStatusExecuted,
			"recovery_status": domain.DocRecoveryPending,
			"title":           exec.ScenarioTitle,
			"summary":         fmt.Sprintf("Executed %d action(s) for %s", len(exec.Actions), exec.ScenarioTitle),
			"actions":         exec.Actions,
		},
	}
	return s.add(doc)
}

// RecordDeferred writes the action_execution:<id>:deferred document.
func (s *Store) RecordDeferred(exec domain.ActionExecution) error {
	doc := domain.KnowledgeDocument{
		DocKey:  DeferredKey(exec.ID),
		Content: strings.Join(exec.Actions, "; "),
		Metadata: map[string]interface{}{
			"type":            domain.DocTypeActionExecution,
			"scenario_code":   exec.ScenarioCode,
			"status":          domain.DocStatusDeferred,
			"recovery_status": domain.DocRecoveryNotExecuted,
			"title":           exec.ScenarioTitle,
			"summary":         fmt.Sprintf("Deferred %d action(s) for %s", len(exec.Actions), exec.ScenarioTitle),
			"actions":         exec.Actions,
		},
	}
	return s.add(doc)
}

// RecordReport writes the incident_report:<id> document.
func (s *Store) RecordReport(report domain.IncidentReport) error {
	doc := domain.KnowledgeDocument{
		DocKey:  ReportKey(report.ID),
		Content: report.Summary + " " + report.RootCause + " " + report.Impact,
		Metadata: map[string]interface{}{
			"type":            domain.DocTypeIncidentReport,
			"scenario_code":   report.ScenarioCode,
			"status":          domain.DocStatusReport,
			"recovery_status": domain.DocRecoveryNotApplicable,
			"title":           report.Title,
			"summary":         report.Summary,
			"actions":         report.ActionItems,
		},
	}
	return s.add(doc)
}

// RecordUpload writes an uploaded:<uuid> document. It does not dedupe by
// content, only by the generated key, so re-uploading the same file twice
// creates two documents.
func (s *Store) RecordUpload(id, title, content string, metadata map[string]interface{}) (string, error) {
	key := UploadedKey(id)
	merged := map[string]interface{}{
		"type": domain.DocTypeUploaded,
	}
	for k, v := range metadata {
		merged[k] = v
	}
	if _, ok := merged["title"]; !ok {
		merged["title"] = title
	}
	if _, ok := merged["status"]; !ok {
		merged["status"] = domain.DocStatusReference
	}
	if _, ok := merged["recovery_status"]; !ok {
		merged["recovery_status"] = domain.DocRecoveryNotApplicable
	}
	doc := domain.KnowledgeDocument{DocKey: key, Content: content, Metadata: merged}
	if err := s.add(doc); err != nil {
		return "", err
	}
	return key, nil
}

// MarkRecovery updates the executed document for executionID with the
// recovery outcome. Returns false if no such document exists. Idempotent:
// calling again on an already-recovered document re-applies the same
// values harmlessly.
func (s *Store) MarkRecovery(executionID, status string, resolvedAt time.Time, metrics domain.MetricSample) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ExecutedKey(executionID)
	doc, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	doc.Metadata["recovery_status"] = status
	doc.Metadata["recovered_at"] = resolvedAt
	doc.Metadata["recovery_metrics"] = metrics
	s.docs[key] = doc
	return true, s.persist()
}

// Documents returns a copy of every stored document.
func (s *Store) Documents() []domain.KnowledgeDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.KnowledgeDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Search returns documents matching metadataFilter, ordered by similarity
// to query when query is non-empty (documents with equal scores come in no
// defined order), else by recency. limit <= 0 means unlimited.
func (s *Store) Search(query string, limit int, metadataFilter map[string]string) []domain.KnowledgeDocument {
	s.mu.Lock()
	docs := make([]domain.KnowledgeDocument, 0, len(s.docs))
	for _, d := range s.docs {
		if matchesFilter(d, metadataFilter) {
			docs = append(docs, d.Clone())
		}
	}
	s.index.ensure(s.docs)
	s.mu.Unlock()

	if strings.TrimSpace(query) != "" {
		scored := s.index.score(query, docs)
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
		docs = make([]domain.KnowledgeDocument, len(scored))
		for i, sc := range scored {
			docs[i] = sc.doc
		}
	} else {
		sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

func matchesFilter(doc domain.KnowledgeDocument, filter map[string]string) bool {
	for k, v := range filter {
		if v == "" {
			continue
		}
		got, ok := doc.Metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != v {
			return false
		}
	}
	return true
}

// RecentActions returns a flattened, insertion-ordered (duplicates
// preserved) list of action strings from the most recent limit documents
// matching status, and scenarioCode when non-empty (an empty scenarioCode
// matches documents for any scenario).
func (s *Store) RecentActions(scenarioCode, status string, limit int) []string {
	docs := s.Search("", limit, map[string]string{
		"scenario_code": scenarioCode,
		"status":        status,
	})
	var actions []string
	for _, d := range docs {
		raw, ok := d.Metadata["actions"]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case []string:
			actions = append(actions, v...)
		case []interface{}:
			for _, item := range v {
				if str, ok := item.(string); ok {
					actions = append(actions, str)
				}
			}
		}
	}
	return actions
}

// BuildContextForScenario assembles RAG context text for prompting, in
// preference order: approved actions for this scenario, else related
// history for this scenario, else recent approved actions generally, else
// empty.
func (s *Store) BuildContextForScenario(scenario domain.AlertScenario, limit int) string {
	if actions := s.RecentActions(scenario.Code, domain.DocStatusExecuted, limit); len(actions) > 0 {
		return "Previously approved actions for this scenario: " + strings.Join(actions, "; ")
	}

	related := s.Search(scenario.Title, limit, map[string]string{"scenario_code": scenario.Code})
	if len(related) > 0 {
		var parts []string
		for _, d := range related {
			if summary, ok := d.Metadata["summary"].(string); ok && summary != "" {
				parts = append(parts, summary)
			}
		}
		if len(parts) > 0 {
			return "Related history for this scenario: " + strings.Join(parts, "; ")
		}
	}

	if actions := s.RecentActions("", domain.DocStatusExecuted, limit); len(actions) > 0 {
		return "Recently approved actions: " + strings.Join(actions, "; ")
	}

	return ""
}
