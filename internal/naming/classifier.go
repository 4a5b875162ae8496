package naming

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultPrefix is the word macOS puts in front of screenshots on Japanese systems.
	DefaultPrefix = "スクリーンショット"

	// ScreenshotExt is the extension used by the OS screenshot feature.
	ScreenshotExt = ".png"

	takenAtLayout = "2006-01-02 15.04.05"
)

// Classifier recognizes files named by the OS screenshot template:
// "<prefix> YYYY-MM-DD H.MM.SS.png".
type Classifier struct {
	prefix  string
	pattern *regexp.Regexp
}

// NewClassifier builds a Classifier for the given locale prefix.
// An empty prefix selects DefaultPrefix.
func NewClassifier(prefix string) *Classifier {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Classifier{
		prefix: prefix,
		pattern: regexp.MustCompile(
			`^` + regexp.QuoteMeta(prefix) + `[\s\p{Zs}](\d{4}-\d{2}-\d{2})[\s\p{Zs}](\d{1,2}\.\d{2}\.\d{2})(?i:\.png)$`,
		),
	}
}

// Prefix returns the locale prefix the classifier matches.
func (c *Classifier) Prefix() string {
	return c.prefix
}

// IsScreenshot reports whether path names a freshly taken screenshot.
func (c *Classifier) IsScreenshot(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ScreenshotExt) {
		return false
	}
	return c.pattern.MatchString(filepath.Base(path))
}

// TakenAt extracts the capture time encoded in a screenshot name.
func (c *Classifier) TakenAt(path string) (time.Time, bool) {
	m := c.pattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(takenAtLayout, m[1]+" "+m[2], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
