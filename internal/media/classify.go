// Package media decides which uploads are accepted and turns accepted images
// into thumbnails.
package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFileType is returned by Classify for rejected uploads.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ThumbnailMarker is inserted before the extension of a thumbnail name. Any
// file name containing it is treated as a thumbnail.
const ThumbnailMarker = ".thumbnail"

// supportedExtensions is matched case-sensitively.
var supportedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// Upload is a classified file part that may be persisted.
type Upload struct {
	Filename    string
	Ext         string
	ContentType string
}

// Extension returns the text after the last '.' in name, or "" if there is
// no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// ThumbnailName derives <base>.thumbnail.<ext> from <base>.<ext>.
func ThumbnailName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name + ThumbnailMarker
	}
	return name[:i] + ThumbnailMarker + name[i:]
}

// IsThumbnail reports whether name carries the thumbnail marker.
func IsThumbnail(name string) bool {
	return strings.Contains(name, ThumbnailMarker)
}

// ContentTypeFor maps an extension to the content type used when viewing a
// stored file inline.
func ContentTypeFor(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Classify accepts an upload only when its declared content type is an image
// type and its extension is on the whitelist.
func Classify(contentType, filename string) (Upload, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	ext := Extension(filename)

	switch {
	case !strings.HasPrefix(ct, "image/"):
		return Upload{}, fmt.Errorf("%w: content type %q", ErrUnsupportedFileType, contentType)
	case strings.HasPrefix(ct, "video/"):
		return Upload{}, fmt.Errorf("%w: content type %q", ErrUnsupportedFileType, contentType)
	case !supportedExtensions[ext]:
		return Upload{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFileType, ext)
	}

	return Upload{Filename: filename, Ext: ext, ContentType: contentType}, nil
}
