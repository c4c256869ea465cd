package reconcile

import (
	"strings"

	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Delta counts the lines a write added and removed relative to its before
// snapshot.
type Delta struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// LineDelta runs a line-mode diff of before against after.
func LineDelta(before, after string) Delta {
	if before == after {
		return Delta{}
	}
	var d Delta
	for _, chunk := range diff.Do(before, after) {
		switch chunk.Type {
		case diffmatchpatch.DiffInsert:
			d.Added += chunkLines(chunk.Text)
		case diffmatchpatch.DiffDelete:
			d.Removed += chunkLines(chunk.Text)
		case diffmatchpatch.DiffEqual:
		}
	}
	return d
}

// chunkLines counts the lines of a line-mode diff chunk. Only the final line
// of a file can lack its newline.
func chunkLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
