// Package emotion defines the fixed, ordered set of facial expression labels
// and the argmax policy that maps classifier scores onto them.
package emotion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Label is one of the seven expression classes. The integer value is the
// classifier output index.
type Label int

const (
	Angry Label = iota
	Disgusted
	Fearful
	Happy
	Sad
	Surprised
	Neutral
)

// Count is the number of labels the classifier emits scores for.
const Count = 7

var names = [Count]string{"Angry", "Disgusted", "Fearful", "Happy", "Sad", "Surprised", "Neutral"}

var (
	ErrNoScores   = errors.New("emotion: empty score vector")
	ErrAllNaN     = errors.New("emotion: score vector has no finite values")
	ErrUnknownTag = errors.New("emotion: unknown label")
)

// Names returns the label names in index order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// String returns the label name.
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}

	return names[l]
}

// Index returns the classifier output index of the label.
func (l Label) Index() int {
	return int(l)
}

// Valid tests if the label is within the fixed label set.
func (l Label) Valid() bool {
	return l >= 0 && int(l) < Count
}

// FromIndex converts a classifier output index into a label.
func FromIndex(i int) (Label, error) {
	l := Label(i)

	if !l.Valid() {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownTag, i)
	}

	return l, nil
}

// Parse looks up a label by its name.
func Parse(name string) (Label, error) {
	for i, n := range names {
		if n == name {
			return Label(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownTag, name)
}

// Argmax returns the label with the highest score. Exact ties resolve to the
// lowest index and NaN scores are ignored. Scores beyond the label set are
// not considered.
func Argmax(scores []float32) (Label, error) {
	if len(scores) == 0 {
		return 0, ErrNoScores
	}

	if len(scores) > Count {
		scores = scores[:Count]
	}

	values := make([]float64, len(scores))
	finite := false

	for i, s := range scores {
		values[i] = float64(s)

		if !math.IsNaN(values[i]) {
			finite = true
		}
	}

	if !finite {
		return 0, ErrAllNaN
	}

	// floats.MaxIdx returns the first index holding the maximum.
	return Label(floats.MaxIdx(values)), nil
}
