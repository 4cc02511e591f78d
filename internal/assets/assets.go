package assets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("Only PNG/JPG allowed")
	ErrInvalidData     = errors.New("Invalid image data")
)

// Kind selects the directory and file name prefix of a stored upload.
type Kind int

const (
	Passport Kind = iota
	Signature
	Receipt
)

func (k Kind) String() string {
	switch k {
	case Passport:
		return "passport"
	case Signature:
		return "signature"
	case Receipt:
		return "receipt"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) prefix() string {
	switch k {
	case Passport:
		return "pass"
	case Signature:
		return "sig"
	}
	return "receipt"
}

var allowedExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

var dataURLPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,(.+)$`)

// Store writes uploads below one directory per Kind.
type Store struct {
	dirs map[Kind]string
}

// NewStore creates the directories if needed.
func NewStore(passportDir, signatureDir, receiptDir string) (*Store, error) {
	s := &Store{dirs: map[Kind]string{
		Passport:  passportDir,
		Signature: signatureDir,
		Receipt:   receiptDir,
	}}
	for kind, dir := range s.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("assets: create %s dir: %w", kind, err)
		}
	}
	return s, nil
}

// Save stores either the uploaded file or, when no file was sent, the base64
// data URL. It returns "" with a nil error when neither is present.
func (s *Store) Save(kind Kind, file *multipart.FileHeader, dataURL string) (string, error) {
	if file != nil && file.Filename != "" {
		return s.saveFile(kind, file)
	}
	if dataURL = strings.TrimSpace(dataURL); dataURL != "" {
		return s.saveDataURL(kind, dataURL)
	}
	return "", nil
}

// Remove deletes a stored file, ignoring paths that are already gone.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) saveFile(kind Kind, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedType
	}
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("assets: open upload: %w", err)
	}
	defer src.Close()
	return s.write(kind, ext, src)
}

func (s *Store) saveDataURL(kind Kind, dataURL string) (string, error) {
	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return "", ErrInvalidData
	}
	raw, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", ErrInvalidData
	}
	ext := ".jpg"
	if m[1] == "png" {
		ext = ".png"
	}
	return s.write(kind, ext, bytes.NewReader(raw))
}

func (s *Store) write(kind Kind, ext string, r io.Reader) (string, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return "", fmt.Errorf("assets: unknown kind %s", kind)
	}
	name := kind.prefix() + "_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("assets: create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("assets: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("assets: close %s: %w", name, err)
	}
	return path, nil
}
