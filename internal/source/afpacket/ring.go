package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
	maxBlockSize     = 4 << 20
)

// ringLayout is a PACKET_MMAP ring geometry.
type ringLayout struct {
	FrameSize int
	BlockSize int
	NumBlocks int
}

// computeRing sizes a ring of roughly sizeMB megabytes for frames of up to
// snapLen bytes. Frames are aligned to TPACKET_ALIGNMENT; blocks are whole
// pages holding a whole number of frames.
func computeRing(sizeMB, snapLen, pageSize int) (ringLayout, error) {
	if sizeMB <= 0 {
		return ringLayout{}, fmt.Errorf("buffer_size_mb must be positive, got %d", sizeMB)
	}
	if snapLen <= 0 {
		return ringLayout{}, fmt.Errorf("snap_len must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringLayout{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frame := alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	block := lcm(pageSize, frame)
	if block > maxBlockSize {
		// one page-aligned frame per block
		frame = alignUp(frame, pageSize)
		block = frame
	}

	blocks := sizeMB * 1024 * 1024 / block
	if blocks < 1 {
		blocks = 1
	}
	return ringLayout{FrameSize: frame, BlockSize: block, NumBlocks: blocks}, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
