package assets

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewStore(filepath.Join(root, "uploads"), filepath.Join(root, "signatures"), filepath.Join(root, "receipts"))
	require.NoError(t, err)
	return s, root
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

var storedName = regexp.MustCompile(`^(pass|sig|receipt)_[0-9a-f]{32}\.(png|jpg|jpeg)$`)

func TestSaveFile(t *testing.T) {
	s, root := newStore(t)

	path, err := s.Save(Passport, fileHeader(t, "Me.JPEG", []byte("jpeg bytes")), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "uploads"), filepath.Dir(path))
	require.Regexp(t, storedName, filepath.Base(path))
	require.Equal(t, ".jpeg", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "jpeg bytes", string(data))
}

func TestSaveFileRejectsOtherTypes(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Save(Signature, fileHeader(t, "sig.gif", []byte("gif")), "")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSaveFileWinsOverDataURL(t *testing.T) {
	s, root := newStore(t)
	path, err := s.Save(Signature, fileHeader(t, "sig.png", []byte("x")), "data:image/png;base64,!!!")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "signatures"), filepath.Dir(path))
	require.Regexp(t, `^sig_`, filepath.Base(path))
}

func TestSaveDataURL(t *testing.T) {
	s, root := newStore(t)
	payload := []byte{0x89, 'P', 'N', 'G'}

	tests := []struct {
		mime string
		ext  string
	}{
		{"png", ".png"},
		{"jpeg", ".jpg"},
		{"jpg", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			url := "data:image/" + tt.mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
			path, err := s.Save(Receipt, nil, url)
			require.NoError(t, err)
			require.Equal(t, filepath.Join(root, "receipts"), filepath.Dir(path))
			require.Equal(t, tt.ext, filepath.Ext(path))
			require.Regexp(t, storedName, filepath.Base(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, payload, data)
		})
	}
}

func TestSaveDataURLInvalid(t *testing.T) {
	s, _ := newStore(t)
	for _, url := range []string{
		"data:image/gif;base64,R0lGOD",
		"data:text/plain;base64,aGk=",
		"data:image/png;base64,***",
		"not a data url",
	} {
		_, err := s.Save(Passport, nil, url)
		require.ErrorIs(t, err, ErrInvalidData, url)
	}
}

func TestSaveNothing(t *testing.T) {
	s, _ := newStore(t)
	path, err := s.Save(Passport, nil, "  ")
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestRemove(t *testing.T) {
	s, _ := newStore(t)
	path, err := s.Save(Passport, fileHeader(t, "a.png", []byte("a")), "")
	require.NoError(t, err)

	require.NoError(t, s.Remove(path))
	require.NoFileExists(t, path)
	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(""))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "passport", Passport.String())
	require.Equal(t, "signature", Signature.String())
	require.Equal(t, "receipt", Receipt.String())
}
