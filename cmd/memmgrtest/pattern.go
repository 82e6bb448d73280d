package main

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/tiler"
)

// patternWalker produces the fill sequence: each value grows by a delta that itself grows by step,
// and step grows whenever delta wraps
type patternWalker struct {
	value uint16
	delta uint16
	step  uint16
}

func newPatternWalker(start uint16) *patternWalker {
	return &patternWalker{value: start, delta: 1, step: 1}
}

func (p *patternWalker) next() uint16 {
	value := p.value
	p.value += p.delta
	p.delta += p.step
	if p.delta < p.step {
		p.step++
		p.delta = p.step
	}
	return value
}

// blockRows returns the bytes of each row that carry pixels and the distance between rows. A 1D block
// is one row of its full length.
func blockRows(block tiler.BlockSpec) (rows, width, stride int) {
	if block.Format == tiler.FormatPage {
		return 1, block.Length, block.Length
	}
	return block.Height, block.Width * tiler.BytesPerPixel(block.Format), block.Stride
}

// fillBlock writes the pattern over every pixel of a block and zeroes the row padding
func fillBlock(data []byte, block tiler.BlockSpec, start uint16) {
	pattern := newPatternWalker(start)
	rows, width, stride := blockRows(block)

	for row := 0; row < rows; row++ {
		line := data[row*stride : row*stride+stride]
		i := 0
		for ; i+1 < width; i += 2 {
			binary.LittleEndian.PutUint16(line[i:], pattern.next())
		}
		for ; i+1 < stride; i += 2 {
			binary.LittleEndian.PutUint16(line[i:], 0)
		}
	}
}

// checkBlock verifies a block written by fillBlock with the same start value
func checkBlock(data []byte, block tiler.BlockSpec, start uint16) error {
	pattern := newPatternWalker(start)
	rows, width, stride := blockRows(block)

	for row := 0; row < rows; row++ {
		line := data[row*stride : row*stride+stride]
		i := 0
		for ; i+1 < width; i += 2 {
			expected := pattern.next()
			actual := binary.LittleEndian.Uint16(line[i:])
			if actual != expected {
				return errors.Newf("row %d byte %d holds 0x%04x, expected 0x%04x", row, i, actual, expected)
			}
		}
		for ; i+1 < stride; i += 2 {
			actual := binary.LittleEndian.Uint16(line[i:])
			if actual != 0 {
				return errors.Newf("row %d padding byte %d holds 0x%04x", row, i, actual)
			}
		}
	}
	return nil
}

// fillBuffer fills every block of buffer, using consecutive start values
func fillBuffer(buffer *tiler.Buffer, start uint16) {
	for i := 0; i < buffer.BlockCount(); i++ {
		fillBlock(buffer.BlockBytes(i), buffer.Block(i), start+uint16(i))
	}
}

func checkBuffer(buffer *tiler.Buffer, start uint16) error {
	for i := 0; i < buffer.BlockCount(); i++ {
		err := checkBlock(buffer.BlockBytes(i), buffer.Block(i), start+uint16(i))
		if err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
	}
	return nil
}
