package storage

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// ImagePrefix is the key prefix for product images.
const ImagePrefix = "products/"

// MaxImageBytes caps a single image upload.
const MaxImageBytes = 5 << 20

var ErrUnsupportedImage = errors.New("unsupported image type")

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ImageContentType maps a file name to its image content type.
func ImageContentType(filename string) (string, error) {
	ct, ok := imageContentTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return ct, nil
}

// ImageKey builds the object key products/<owner>/<id>-<sanitized name>.
func ImageKey(ownerID, id, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "image"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		name = name[:100-len(ext)] + ext
	}
	return ImagePrefix + ownerID + "/" + id + "-" + name
}
