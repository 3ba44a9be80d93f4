// Package classify recognises landmarks in square images with an OpenCV DNN model.
package classify

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// NoLandmark is shown when nothing scored above the threshold, or classification failed.
const NoLandmark = "No landmark detected"

type Label struct {
	Name       string
	Confidence float32
}

func (l Label) String() string {
	return fmt.Sprintf("%s (%.1f%%)", l.Name, l.Confidence*100)
}

// Strings renders labels for display, or the NoLandmark placeholder for an empty result.
func Strings(labels []Label) []string {
	if len(labels) == 0 {
		return []string{NoLandmark}
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}

// TopLabels keeps at most max scores that reach threshold, best first. Scores without a name are
// reported by index.
func TopLabels(scores []float32, names []string, threshold float32, max int) []Label {
	labels := make([]Label, 0, len(scores))
	for i, s := range scores {
		if s < threshold {
			continue
		}
		name := fmt.Sprintf("class %d", i)
		if i < len(names) {
			name = names[i]
		}
		labels = append(labels, Label{Name: name, Confidence: s})
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})

	if max > 0 && len(labels) > max {
		labels = labels[:max]
	}
	return labels
}

// ReadLabels reads one class name per line. Blank lines keep their index.
func ReadLabels(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		names = append(names, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	return names, nil
}
