package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypartner/internal/apperr"
	"studypartner/internal/text"
)

type fakePages struct {
	pages []string
	errAt int
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) PageText(i int) (string, error) {
	if i == f.errAt {
		return "", errors.New("bad font")
	}
	return f.pages[i-1], nil
}

func TestRender_RoundTripsThroughSegmenter(t *testing.T) {
	pages := &fakePages{pages: []string{" Intro to paging ", "TLB hits", "", "Page faults"}, errAt: -1}
	body := render(context.Background(), pages)

	units, err := text.NewSegmenter(1).Segment(text.Document{Name: "Memory.pdf", Kind: text.KindPage, Text: body})
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, 1, units[0].PageNumber)
	assert.Equal(t, "Intro to paging", units[0].Text)
	assert.Equal(t, 2, units[1].PageNumber)
	assert.Equal(t, "TLB hits", units[1].Text)
	assert.Equal(t, 4, units[2].PageNumber, "the blank third page keeps its number free")
	assert.Equal(t, "Memory_chunk_004", units[2].ID)
}

func TestRender_SkipsUnreadablePage(t *testing.T) {
	pages := &fakePages{pages: []string{"one", "two"}, errAt: 1}
	body := render(context.Background(), pages)
	assert.Equal(t, "\npage1 complete\ntwo\npage2 complete\n", body)
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	_, err := NewPDFExtractor().ExtractBytes(context.Background(), "fake.pdf", []byte("hello"))
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedFormat))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "Intro.pptx.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Title slide1 complete Agenda"), 0o600))
	doc, err := Load(context.Background(), txt)
	require.NoError(t, err)
	assert.Equal(t, "Intro.pptx", doc.Name)
	assert.Equal(t, text.KindSlide, doc.Kind)

	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))
	_, err = Load(context.Background(), bad)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedFormat))

	_, err = Load(context.Background(), filepath.Join(dir, "notes.docx"))
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedFormat))
}

func TestSupported(t *testing.T) {
	assert.NoError(t, Supported("notes/Week3.PDF"))
	assert.NoError(t, Supported("Lecture1.pdf.txt"))
	assert.NoError(t, Supported("Slides.pptx.txt"))
	assert.True(t, errors.Is(Supported("essay.docx"), apperr.ErrUnsupportedFormat))
}
