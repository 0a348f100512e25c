package agent

import (
	"errors"
	"strings"
)

// ErrFragmentNotFound means patch_note could not locate the text to replace.
var ErrFragmentNotFound = errors.New("Fragment not found")

// applyPatch replaces oldText in content once. When the exact fragment is
// missing it falls back to the single line most similar to oldText, accepted
// only at or above the cutoff ratio.
func applyPatch(content, oldText, newText string, cutoff float64) (string, bool, error) {
	if idx := strings.Index(content, oldText); idx >= 0 {
		return content[:idx] + newText + content[idx+len(oldText):], false, nil
	}
	line, ok := closestLine(oldText, strings.Split(content, "\n"), cutoff)
	if !ok {
		return "", false, ErrFragmentNotFound
	}
	idx := strings.Index(content, line)
	return content[:idx] + newText + content[idx+len(line):], true, nil
}

// closestLine returns the candidate with the highest similarity ratio at or
// above cutoff. Earlier lines win ties.
func closestLine(target string, lines []string, cutoff float64) (string, bool) {
	best := ""
	bestRatio := cutoff
	found := false
	for _, line := range lines {
		r := similarity(target, line)
		if r > bestRatio || (!found && r == bestRatio) {
			best, bestRatio, found = line, r, true
		}
	}
	return best, found
}

// similarity is the Ratcliff-Obershelp ratio: twice the matched character
// count over the combined length.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchedRunes(ra, rb)) / float64(total)
}

func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommonRun(a, b)
	if size == 0 {
		return 0
	}
	return size + matchedRunes(a[:ai], b[:bi]) + matchedRunes(a[ai+size:], b[bi+size:])
}

func longestCommonRun(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths of common suffixes ending at a[i-1], b[j-1]
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
