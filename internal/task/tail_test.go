package task

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailWriter_KeepsOnlyLastLines(t *testing.T) {
	w := newTailWriter(3)
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(w, "line %d\n", i)
	}

	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, w.Lines())
}

func TestTailWriter_SplitWrites(t *testing.T) {
	w := newTailWriter(5)
	w.Write([]byte("first "))
	w.Write([]byte("half\nsecond line\n"))

	assert.Equal(t, []string{"first half", "second line"}, w.Lines())
}

func TestTailWriter_TrailingPartialLineIncluded(t *testing.T) {
	w := newTailWriter(5)
	w.Write([]byte("complete line\nno newline yet"))

	assert.Equal(t, []string{"complete line", "no newline yet"}, w.Lines())
}

func TestTailWriter_Empty(t *testing.T) {
	w := newTailWriter(5)
	assert.Empty(t, w.Lines())
}
