package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/term"
)

func TestPromptPicker(t *testing.T) {
	var out bytes.Buffer
	pick := promptPicker(strings.NewReader("2\n"), &out)
	idx, err := pick("Choose an option", []string{"Fix Code", "Explain Error"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Contains(t, out.String(), "2. Explain Error")

	for _, in := range []string{"", "0\n", "7\n", "x\n"} {
		_, err := promptPicker(strings.NewReader(in), &out)("Choose", []string{"a"})
		assert.ErrorIs(t, err, editor.ErrCancelled, "input %q", in)
	}
}

func TestHTMLPath(t *testing.T) {
	assert.Equal(t, "out.html", htmlPath("out.html", 0))
	assert.Equal(t, "out-2.html", htmlPath("out.html", 1))
	assert.Equal(t, "dir/page-3", htmlPath("dir/page", 2))
}

func TestWriteHTML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, writeHTML(fsys, "", []term.Panel{{}}))
	require.NoError(t, writeHTML(fsys, "p.html", nil))

	panels := []term.Panel{
		{Panel: editor.Panel{Title: "Error Explanation"}},
		{Panel: editor.Panel{Title: "Optimized Code Suggestions"}},
	}
	require.NoError(t, writeHTML(fsys, "p.html", panels))
	first, err := afero.ReadFile(fsys, "p.html")
	require.NoError(t, err)
	assert.Contains(t, string(first), "Error Explanation")
	second, err := afero.ReadFile(fsys, "p-2.html")
	require.NoError(t, err)
	assert.Contains(t, string(second), "Optimized Code Suggestions")
}
