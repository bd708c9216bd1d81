package container

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

var d88Exts = map[string]bool{".d88": true, ".d77": true, ".88d": true, ".d68": true}

// IsD88Name reports whether name carries a D88 extension.
func IsD88Name(name string) bool {
	return d88Exts[strings.ToLower(filepath.Ext(name))]
}

// Parse decodes an image, trying D88 first when name says so or the
// header looks right.
func Parse(name string, data []byte) (*Image, error) {
	named := IsD88Name(name)
	if named || IsD88(data) {
		img, err := ParseD88(data)
		if err == nil || named {
			return img, err
		}
	}
	return ParseRaw(data)
}

// Open reads the image at path from fs.
func Open(fs afero.Fs, path string) (*Image, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, checkpoint.From(err)
	}
	img, err := Parse(path, data)
	if err != nil {
		return nil, checkpoint.Errorf(err, "%s", path)
	}
	return img, nil
}

// Bytes encodes the image in its own kind.
func (img *Image) Bytes() []byte {
	if img.Kind == KindD88 {
		return img.D88()
	}
	return img.Raw()
}

// Save writes the image to path, replacing any file there.
func (img *Image) Save(fs afero.Fs, path string) error {
	if err := afero.WriteFile(fs, path, img.Bytes(), 0644); err != nil {
		return checkpoint.From(err)
	}
	return nil
}

// Create writes a blank image of kind for g at path.
func Create(fs afero.Fs, path string, kind Kind, g disk.Geometry) (*Image, error) {
	img, err := New(kind, g)
	if err != nil {
		return nil, err
	}
	return img, img.Save(fs, path)
}
