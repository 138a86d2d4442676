package source

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	tests := []struct {
		in      string
		want    *LineRange
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "3", want: &LineRange{Start: 3, End: 3}},
		{in: "2:5", want: &LineRange{Start: 2, End: 5}},
		{in: "5:2", wantErr: true},
		{in: "0:1", wantErr: true},
		{in: "a:b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLines(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func newProvider(fsys afero.Fs, stdin string, piped bool, clip string, clipErr error) *Provider {
	return &Provider{
		fs:        fsys,
		stdin:     strings.NewReader(stdin),
		isPiped:   func() bool { return piped },
		clipboard: func() (string, error) { return clip, clipErr },
	}
}

func TestLoadFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "main.go", []byte("a\nb\nc"), 0644))

	p := newProvider(fsys, "", true, "", nil)
	src, err := p.Load("main.go", &LineRange{Start: 2, End: 3})
	require.NoError(t, err)
	assert.Equal(t, File, src.Kind)
	assert.Equal(t, "a\nb\nc", src.Text)

	_, err = p.Load("main.go", &LineRange{Start: 2, End: 4})
	assert.Error(t, err)

	_, err = p.Load("missing.go", nil)
	assert.Error(t, err)
}

func TestLoadStdinThenClipboard(t *testing.T) {
	src, err := newProvider(afero.NewMemMapFs(), "piped", true, "clip", nil).Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Stdin, src.Kind)
	assert.Equal(t, "piped", src.Text)

	src, err = newProvider(afero.NewMemMapFs(), "", false, "clip", nil).Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Clipboard, src.Kind)
	assert.Equal(t, "clip", src.Text)
}

func TestLoadErrors(t *testing.T) {
	_, err := newProvider(afero.NewMemMapFs(), "  \n", true, "", nil).Load("", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = newProvider(afero.NewMemMapFs(), "", false, "", errors.New("no xclip")).Load("", nil)
	assert.ErrorContains(t, err, "no xclip")

	_, err = newProvider(afero.NewMemMapFs(), "x", true, "", nil).Load("", &LineRange{Start: 1, End: 1})
	assert.Error(t, err)
}
