// Package keyword provides the Bleve-backed exact-word search over ingested
// chunks. It complements semantic retrieval for the find-in-notes surface:
// term lookups like an acronym or a formula name that embeddings blur.
package keyword

import (
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/pkg/utils"
)

// chunkDoc is the indexed form of a chunk. Content is searchable; source and
// page are stored so results carry their citation without a second lookup.
type chunkDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}

// Match is one keyword search result.
type Match struct {
	ID      string
	Snippet string
	Source  string
	Page    int
	Score   float64
}

// Index is a persistent Bleve index over chunk text.
type Index struct {
	index bleve.Index
}

// Open creates or opens the keyword index at path. An existing index is
// reused; remove the directory to force a rebuild after a mapping change.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open keyword index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// OpenMemory creates a non-persistent index for tests.
func OpenMemory() (*Index, error) {
	index, err := bleve.NewMemOnly(chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// chunkMapping indexes content with the standard analyzer (lowercase +
// tokenize, no stemming) so a query like "bayes" matches the exact word;
// English stemming would fold "Bayesian" and "bayes" to different stems and
// miss. Source is a keyword field so deletion can term-match it verbatim.
func chunkMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	contentMapping := bleve.NewTextFieldMapping()
	contentMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", contentMapping)
	docMapping.AddFieldMappingsAt("source", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())
	im.DefaultMapping = docMapping
	return im
}

// Add indexes chunks under their chunk IDs.
func (x *Index) Add(chunks []models.Chunk) error {
	batch := x.index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{Content: c.Text, Source: c.Source, Page: c.Page}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Search returns up to limit chunks matching query, best first. When fuzzy
// is true each term tolerates small typos.
func (x *Index) Search(query string, limit int, fuzzy bool) ([]Match, error) {
	var q blevequery.Query
	if fuzzy {
		q = fuzzyQuery(query)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"content", "source", "page"}
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]Match, 0, len(results.Hits))
	for _, hit := range results.Hits {
		m := Match{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["content"].(string); ok {
			m.Snippet = utils.Truncate(v, snippetLen)
		}
		if v, ok := hit.Fields["source"].(string); ok {
			m.Source = v
		}
		if v, ok := hit.Fields["page"].(float64); ok {
			m.Page = int(v)
		}
		out = append(out, m)
	}
	return out, nil
}

// DeleteSource removes every chunk indexed under source.
func (x *Index) DeleteSource(source string) error {
	tq := bleve.NewTermQuery(source)
	tq.SetField("source")
	req := bleve.NewSearchRequest(tq)
	// Page through in case a source has more chunks than one request returns.
	req.Size = 1000
	for {
		results, err := x.index.Search(req)
		if err != nil {
			return fmt.Errorf("find chunks of %s: %w", source, err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := x.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", source, err)
		}
	}
}

// Count returns the number of indexed chunks.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the underlying index.
func (x *Index) Close() error {
	return x.index.Close()
}

// fuzzyQuery builds a disjunction of per-term fuzzy queries, mimicking
// match-query OR semantics with typo tolerance.
func fuzzyQuery(query string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(2)
		fq.SetField("content")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// snippetLen bounds stored chunk text in results to a display length.
const snippetLen = 200
