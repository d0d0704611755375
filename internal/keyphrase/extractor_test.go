package keyphrase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"studypartner/internal/text"
)

type fixedStrategy struct {
	name   string
	output []string
	gotK   int
}

func (f *fixedStrategy) Name() string { return f.name }

func (f *fixedStrategy) Extract(_ string, topK int) []string {
	f.gotK = topK
	return f.output
}

func TestExtractor_Merge(t *testing.T) {
	tests := []struct {
		name      string
		primary   []string
		secondary []string
		want      []string
	}{
		{
			name:      "First Seen Wins",
			primary:   []string{"deadlock", "mutual exclusion", "semaphore"},
			secondary: []string{"semaphore", "critical section", "deadlock"},
			want:      []string{"deadlock", "mutual exclusion", "semaphore", "critical section"},
		},
		{
			name:      "Duplicates Inside One Strategy",
			primary:   []string{"paging", "paging", "tlb"},
			secondary: []string{"tlb"},
			want:      []string{"paging", "tlb"},
		},
		{
			name:      "Blank Entries Skipped",
			primary:   []string{" ", "ec2"},
			secondary: []string{""},
			want:      []string{"ec2"},
		},
		{
			name: "Both Empty",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fixedStrategy{name: "p", output: tt.primary}
			s := &fixedStrategy{name: "s", output: tt.secondary}
			e := &Extractor{Primary: p, Secondary: s, TopK: 5}

			got := e.Extract("some lecture text")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 5, p.gotK)
			assert.Equal(t, 5, s.gotK)
		})
	}
}

func TestExtractor_EmptyText(t *testing.T) {
	p := &fixedStrategy{output: []string{"should not appear"}}
	e := &Extractor{Primary: p, Secondary: p, TopK: 5}

	got := e.Extract("  \n\t ")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, p.gotK, "strategies are not called for empty text")
}

func TestExtractor_ExtractAll(t *testing.T) {
	units := []text.Unit{
		{ID: "a_chunk_001", Text: "Virtual memory maps pages to frames."},
		{ID: "a_chunk_002", Text: "   "},
	}
	e := &Extractor{Primary: &fixedStrategy{output: []string{"virtual memory"}}, TopK: 5}
	e.ExtractAll(units)

	assert.Equal(t, []string{"virtual memory"}, units[0].Keywords)
	assert.NotNil(t, units[1].Keywords)
	assert.Empty(t, units[1].Keywords)
}

func TestNewExtractor_RealStrategies(t *testing.T) {
	body := `Operating systems schedule processes on the CPU. The process scheduler picks
the next process from the ready queue. Round robin scheduling gives every process a
time quantum. Priority scheduling can starve low priority processes.`

	e := NewExtractor(0)
	assert.Equal(t, DefaultTopK, e.TopK)

	got := e.Extract(body)
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 2*DefaultTopK)

	seen := map[string]bool{}
	for _, kw := range got {
		assert.False(t, seen[kw], "duplicate keyword %q", kw)
		seen[kw] = true
		assert.Equal(t, strings.ToLower(kw), kw)
	}
}
