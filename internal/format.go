package internal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	// MaxDisplayedSources is how many sources are rendered under an answer
	MaxDisplayedSources = 5
	// PreviewLimit is the rune length at which previews are cut
	PreviewLimit = 150
)

// RelativeTime renders how long ago t was, in Indonesian
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	days := int(diff / (24 * time.Hour))
	hours := int(diff / time.Hour)
	minutes := int(diff / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%d hari yang lalu", days)
	case hours > 0:
		return fmt.Sprintf("%d jam yang lalu", hours)
	case minutes > 0:
		return fmt.Sprintf("%d menit yang lalu", minutes)
	default:
		return "Baru saja"
	}
}

// ScoreLabel renders a relevance score as a rounded percentage, or "n/a"
// when the score is absent or NaN
func ScoreLabel(score *float64) string {
	if score == nil || math.IsNaN(*score) {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", int(math.Round(*score*100)))
}

// TruncatePreview cuts text to PreviewLimit runes followed by "..."
func TruncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) > PreviewLimit {
		return string(runes[:PreviewLimit]) + "..."
	}
	return text
}

// FeatureTags lists the truthy enhanced features as Title Case labels,
// sorted for stable output
func FeatureTags(features map[string]any) []string {
	tags := make([]string, 0, len(features))
	for k, v := range features {
		if !truthy(v) {
			continue
		}
		tags = append(tags, titleCase(strings.ReplaceAll(k, "_", " ")))
	}
	sort.Strings(tags)
	return tags
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	default:
		return true
	}
}

func titleCase(s string) string {
	out := []rune(s)
	start := true
	for i, r := range out {
		if start && unicode.IsLetter(r) {
			out[i] = unicode.ToUpper(r)
		}
		start = !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return string(out)
}
