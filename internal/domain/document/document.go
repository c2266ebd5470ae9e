// Package document holds the canonical post-merge document record.
package document

import (
	"unicode/utf8"

	"github.com/docuchat/contextpipe/internal/backend"
)

// Metadata carries the document fields used for citation and filtering.
type Metadata struct {
	ContainerID string
	FileType    string
	URL         string
}

// Document is the canonical record every backend hit is projected into.
// Created by the merger, mutated in place by the deduplicator (provenance)
// and the reranker (finalScore, rank), read-only afterwards.
type Document struct {
	id          string
	title       string
	content     string
	sources     []backend.ID
	normScore   float64
	fingerprint uint64
	meta        Metadata
	finalScore  float64
	rank        int
}

// New creates a merged document with a single-source provenance.
// normScore must already be rescaled to [0,1] within its backend batch.
func New(
	id string, source backend.ID,
	title, content string,
	normScore float64, meta Metadata,
) *Document {
	return &Document{
		id:        id,
		title:     title,
		content:   content,
		sources:   []backend.ID{source},
		normScore: normScore,
		meta:      meta,
		rank:      -1,
	}
}

// ID returns the canonical document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Content returns the document content.
func (d *Document) Content() string { return d.content }

// Length returns the content length in runes, the unit of the length budget.
func (d *Document) Length() int { return utf8.RuneCountInString(d.content) }

// Sources returns the provenance list: every backend that retrieved this document.
func (d *Document) Sources() []backend.ID { return d.sources }

// NormalizedScore returns the per-backend-comparable score in [0,1].
func (d *Document) NormalizedScore() float64 { return d.normScore }

// Fingerprint returns the normalized-content signature (0 until computed).
func (d *Document) Fingerprint() uint64 { return d.fingerprint }

// Metadata returns the citation metadata.
func (d *Document) Metadata() Metadata { return d.meta }

// FinalScore returns the reranked relevance score (0 until ranked).
func (d *Document) FinalScore() float64 { return d.finalScore }

// Rank returns the output position (-1 until ranked).
func (d *Document) Rank() int { return d.rank }

// SetFingerprint records the normalized-content signature.
func (d *Document) SetFingerprint(fp uint64) { d.fingerprint = fp }

// AddSource appends a backend to the provenance list if not already present.
func (d *Document) AddSource(id backend.ID) {
	for _, s := range d.sources {
		if s == id {
			return
		}
	}
	d.sources = append(d.sources, id)
}

// SortSources orders provenance by the given priority (lower first), so the
// leading source is always the highest-priority contributing backend.
func (d *Document) SortSources(priority func(backend.ID) int) {
	for i := 1; i < len(d.sources); i++ {
		for j := i; j > 0 && priority(d.sources[j]) < priority(d.sources[j-1]); j-- {
			d.sources[j], d.sources[j-1] = d.sources[j-1], d.sources[j]
		}
	}
}

// Finalize records the reranked score and output position.
func (d *Document) Finalize(score float64, rank int) {
	d.finalScore = score
	d.rank = rank
}

// Truncated returns a copy whose content is cut to limit runes.
// The original is never mutated; assembly output owns the copy.
func (d *Document) Truncated(limit int) *Document {
	cp := *d
	cp.sources = append([]backend.ID(nil), d.sources...)
	if limit < 0 {
		limit = 0
	}
	runes := []rune(d.content)
	if len(runes) > limit {
		cp.content = string(runes[:limit])
	}
	return &cp
}
