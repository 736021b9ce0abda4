package wire

import "github.com/zeebo/xxh3"

// Block is the unit of payload in both directions.
type Block [BlockSize]byte

// Fill sets every byte of b to v.
func (b *Block) Fill(v byte) {
	for i := range b {
		b[i] = v
	}
}

// Checksum returns the xxh3 digest of the block contents.
func (b *Block) Checksum() uint64 {
	return xxh3.Hash(b[:])
}
