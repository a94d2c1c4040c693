package knowledge

import (
	"strings"

	"github.com/incident-console/backend/internal/domain"
)

// termIndex is the knowledge store's similarity index. No vector/embedding
// library exists anywhere in the example corpus this module was grounded
// on (none of the retrieved repos' go.mod files import an embedding, ANN,
// or vector-database client), so the "optional vector index" described by
// the design notes is realized here as a lightweight bag-of-words scorer:
// Jaccard similarity over lowercased word sets of a document's content,
// title, and summary. It degrades to plain recency ordering whenever the
// query is empty, exactly as an absent vector index would.
type termIndex struct {
	built bool
	terms map[string]map[string]struct{}
}

func (idx *termIndex) invalidate() {
	idx.built = false
	idx.terms = nil
}

func (idx *termIndex) ensure(docs map[string]domain.KnowledgeDocument) {
	if idx.built {
		return
	}
	idx.terms = make(map[string]map[string]struct{}, len(docs))
	for key, doc := range docs {
		idx.terms[key] = tokenize(documentText(doc))
	}
	idx.built = true
}

type scoredDoc struct {
	doc   domain.KnowledgeDocument
	score float64
}

func (idx *termIndex) score(query string, docs []domain.KnowledgeDocument) []scoredDoc {
	queryTerms := tokenize(query)
	out := make([]scoredDoc, len(docs))
	for i, d := range docs {
		docTerms, ok := idx.terms[d.DocKey]
		if !ok {
			docTerms = tokenize(documentText(d))
		}
		out[i] = scoredDoc{doc: d, score: jaccard(queryTerms, docTerms)}
	}
	return out
}

func documentText(doc domain.KnowledgeDocument) string {
	var b strings.Builder
	b.WriteString(doc.Content)
	if title, ok := doc.Metadata["title"].(string); ok {
		b.WriteString(" ")
		b.WriteString(title)
	}
	if summary, ok := doc.Metadata["summary"].(string); ok {
		b.WriteString(" ")
		b.WriteString(summary)
	}
	return b.String()
}

func tokenize(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
