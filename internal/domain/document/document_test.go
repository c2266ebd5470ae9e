package document

import (
	"testing"

	"github.com/docuchat/contextpipe/internal/backend"
)

func newTestDoc(id string, source backend.ID, content string, score float64) *Document {
	return New(id, source, "title", content, score, Metadata{})
}

func TestNew_InitialState(t *testing.T) {
	d := newTestDoc("a", backend.Vector, "hello world", 0.5)
	if d.Rank() != -1 {
		t.Errorf("rank = %d, want -1 before ranking", d.Rank())
	}
	if d.FinalScore() != 0 {
		t.Errorf("finalScore = %v, want 0 before ranking", d.FinalScore())
	}
	if len(d.Sources()) != 1 || d.Sources()[0] != backend.Vector {
		t.Errorf("sources = %v, want [vector]", d.Sources())
	}
}

func TestAddSource_Deduplicates(t *testing.T) {
	d := newTestDoc("a", backend.Vector, "c", 0.5)
	d.AddSource(backend.Keyword)
	d.AddSource(backend.Vector)
	d.AddSource(backend.Keyword)
	if len(d.Sources()) != 2 {
		t.Fatalf("sources = %v, want 2 distinct entries", d.Sources())
	}
}

func TestSortSources(t *testing.T) {
	d := newTestDoc("a", backend.Web, "c", 0.5)
	d.AddSource(backend.Vector)
	d.AddSource(backend.Fulltext)

	priority := map[backend.ID]int{backend.Vector: 0, backend.Fulltext: 1, backend.Web: 4}
	d.SortSources(func(id backend.ID) int { return priority[id] })

	want := []backend.ID{backend.Vector, backend.Fulltext, backend.Web}
	for i, id := range want {
		if d.Sources()[i] != id {
			t.Fatalf("sources = %v, want %v", d.Sources(), want)
		}
	}
}

func TestLength_Runes(t *testing.T) {
	d := newTestDoc("a", backend.Vector, "héllo", 0.5)
	if d.Length() != 5 {
		t.Errorf("length = %d, want 5 runes", d.Length())
	}
}

func TestTruncated(t *testing.T) {
	d := newTestDoc("a", backend.Vector, "hello world", 0.5)
	d.Finalize(0.9, 3)

	cut := d.Truncated(5)
	if cut.Content() != "hello" {
		t.Errorf("content = %q, want %q", cut.Content(), "hello")
	}
	if d.Content() != "hello world" {
		t.Error("original document must not be mutated")
	}
	if cut.Rank() != 3 || cut.FinalScore() != 0.9 {
		t.Error("truncated copy must keep score and rank")
	}

	cut.AddSource(backend.Web)
	if len(d.Sources()) != 1 {
		t.Error("truncated copy must not share the sources slice")
	}
}

func TestTruncated_NoCutWhenFits(t *testing.T) {
	d := newTestDoc("a", backend.Vector, "short", 0.5)
	if cut := d.Truncated(100); cut.Content() != "short" {
		t.Errorf("content = %q, want unchanged", cut.Content())
	}
}
