package file

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

func ReplaceExt(p, ext string) string {
	if p == "" {
		return p
	}

	dir := filepath.Dir(p)
	filename := filepath.Base(p)

	lastDot := strings.LastIndex(filename, ".")

	if lastDot <= 0 {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return filepath.Join(dir, filename+ext)
	}

	nameWithoutExt := filename[:lastDot]

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return filepath.Join(dir, nameWithoutExt+ext)
}

// SafeName turns an arbitrary title into a filesystem-safe file name.
func SafeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	safe := replacer.Replace(strings.TrimSpace(name))
	for strings.Contains(safe, "__") {
		safe = strings.ReplaceAll(safe, "__", "_")
	}
	return strings.Trim(safe, "_")
}

// ExtFromURL extracts the file extension of the path component of a URL.
// Query strings and fragments are ignored. Returns fallback when the URL
// carries no usable extension.
func ExtFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := path.Ext(u.Path)
	if ext == "" || len(ext) > 5 {
		return fallback
	}
	return ext
}
