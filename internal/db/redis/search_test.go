package redis

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBuildTagFilter(t *testing.T) {
	cases := []struct {
		name    string
		filters map[string]string
		want    string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, ""},
		{"single", map[string]string{"container_id": "c1"}, "@container_id:{c1}"},
		{
			"sorted keys",
			map[string]string{"file_type": "pdf", "container_id": "c1"},
			"@container_id:{c1} @file_type:{pdf}",
		},
		{
			"escaped value",
			map[string]string{"file_type": "a-b"},
			`@file_type:{a\-b}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := buildTagFilter(c.filters); got != c.want {
				t.Errorf("buildTagFilter(%v) = %q, want %q", c.filters, got, c.want)
			}
		})
	}
}

func TestBuildTagFilter_Deterministic(t *testing.T) {
	filters := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	first := buildTagFilter(filters)
	for i := 0; i < 20; i++ {
		if got := buildTagFilter(filters); got != first {
			t.Fatalf("filter string not deterministic: %q vs %q", got, first)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"with-dash", `with\-dash`},
		{"@field:{x}", `\@field:\{x\}`},
		{"refund|policy", "refund|policy"}, // alternation must survive
		{`(a)*`, `\(a\)\*`},
	}
	for _, c := range cases {
		if got := escapeQuery(c.in); got != c.want {
			t.Errorf("escapeQuery(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestVectorToBytes(t *testing.T) {
	v := []float32{1.0, -0.5, 0.25}
	got := vectorToBytes(v)
	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
	for i, f := range v {
		bits := binary.LittleEndian.Uint32([]byte(got)[i*4:])
		if math.Float32frombits(bits) != f {
			t.Errorf("float %d round-tripped to %v, want %v", i, math.Float32frombits(bits), f)
		}
	}
}
