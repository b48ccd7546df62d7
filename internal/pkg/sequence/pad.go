// Package sequence pads and truncates id sequences to a fixed length
package sequence

import "github.com/pkg/errors"

// Mode tells on which side padding or truncation happens
type Mode int

const (
	// Post pads or truncates at the end
	Post Mode = iota
	// Pre pads or truncates at the beginning
	Pre
)

// PadSequences returns copies of seqs with exactly maxLen values each
func PadSequences(seqs [][]int, maxLen int, padding, truncating Mode, value int) ([][]int, error) {
	if maxLen < 1 {
		return nil, errors.Errorf("Wrong max length %d", maxLen)
	}
	res := make([][]int, len(seqs))
	for i, s := range seqs {
		if len(s) > maxLen {
			if truncating == Pre {
				s = s[len(s)-maxLen:]
			} else {
				s = s[:maxLen]
			}
		}
		row := make([]int, maxLen)
		if value != 0 {
			for j := range row {
				row[j] = value
			}
		}
		if padding == Pre {
			copy(row[maxLen-len(s):], s)
		} else {
			copy(row, s)
		}
		res[i] = row
	}
	return res, nil
}
