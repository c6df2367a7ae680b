package service

import (
	"fmt"
	"regexp"
)

// ValidationError marks a rejected request so the HTTP layer can answer 400
// instead of 500.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`^https?://youtu\.be/[\w-]+`),
}

// ValidYouTubeURL reports whether rawURL is one of the accepted YouTube link
// forms (watch, shorts or youtu.be).
func ValidYouTubeURL(rawURL string) bool {
	for _, p := range youtubePatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}
