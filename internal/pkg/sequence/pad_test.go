package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadSequences_Post(t *testing.T) {
	res, err := PadSequences([][]int{{1, 2}, {1, 2, 3, 4, 5}, {}}, 4, Post, Post, 0)
	assert.Nil(t, err)
	assert.Equal(t, [][]int{{1, 2, 0, 0}, {1, 2, 3, 4}, {0, 0, 0, 0}}, res)
}

func TestPadSequences_Pre(t *testing.T) {
	res, err := PadSequences([][]int{{1, 2}, {1, 2, 3, 4, 5}}, 3, Pre, Pre, 9)
	assert.Nil(t, err)
	assert.Equal(t, [][]int{{9, 1, 2}, {3, 4, 5}}, res)
}

func TestPadSequences_LengthInvariant(t *testing.T) {
	res, err := PadSequences([][]int{{1}, {1, 2, 3}, {1, 2, 3, 4, 5, 6, 7}}, 5, Post, Post, 0)
	assert.Nil(t, err)
	for _, r := range res {
		assert.Len(t, r, 5)
	}
}

func TestPadSequences_DoesNotAlias(t *testing.T) {
	in := [][]int{{1, 2}}
	res, _ := PadSequences(in, 2, Post, Post, 0)
	res[0][0] = 7
	assert.Equal(t, 1, in[0][0])
}

func TestPadSequences_Fails(t *testing.T) {
	_, err := PadSequences([][]int{{1}}, 0, Post, Post, 0)
	assert.NotNil(t, err)
}
