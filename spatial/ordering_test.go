package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedIntsSortsOnFirstObservation(t *testing.T) {
	o := newOrderedInts()
	o.add(5)
	o.add(1)
	o.add(3)
	o.add(1) // duplicate, ignored

	assert.Equal(t, []int{1, 3, 5}, o.sorted())
}

func TestOrderedIntsEmpty(t *testing.T) {
	o := newOrderedInts()
	assert.Empty(t, o.sorted())
}

func TestIntKeyCompare(t *testing.T) {
	assert.Equal(t, 0, intKey(4).Compare(intKey(4)))
	assert.True(t, intKey(4).Compare(intKey(2)) > 0)
	assert.True(t, intKey(2).Compare(intKey(4)) < 0)
}
