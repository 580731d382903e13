package devnet

import (
	"fmt"
	"regexp"
)

// BlockTag names a block relative to the chain head.
type BlockTag string

const (
	BlockTagLatest       BlockTag = "latest"
	BlockTagPreConfirmed BlockTag = "pre_confirmed"
	BlockTagL1Accepted   BlockTag = "l1_accepted"
)

var blockHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// BlockID identifies a block by number, hash or tag. Exactly one should be set;
// use BlockNumber, BlockHash, Tag or ParseBlockID to build one.
type BlockID struct {
	Number *uint64
	Hash   string
	Tag    BlockTag
}

// BlockNumber returns the ID of the block at height n.
func BlockNumber(n uint64) BlockID {
	return BlockID{Number: &n}
}

// BlockHash returns the ID of the block with the given 0x-prefixed hash.
func BlockHash(hash string) BlockID {
	return BlockID{Hash: hash}
}

// Tag returns the ID of the block the tag currently points at.
func Tag(tag BlockTag) BlockID {
	return BlockID{Tag: tag}
}

// ParseBlockID accepts a tag or a 0x-prefixed hash. Decimal strings are rejected;
// use BlockNumber for heights.
func ParseBlockID(s string) (BlockID, error) {
	id := BlockID{}
	if isBlockTag(BlockTag(s)) {
		id.Tag = BlockTag(s)
	} else {
		id.Hash = s
	}
	if _, err := id.ToRPC(); err != nil {
		return BlockID{}, err
	}
	return id, nil
}

func isBlockTag(tag BlockTag) bool {
	switch tag {
	case BlockTagLatest, BlockTagPreConfirmed, BlockTagL1Accepted:
		return true
	}
	return false
}

// ToRPC converts the ID to its JSON-RPC form: {"block_number": n}, {"block_hash": h}
// or the bare tag.
func (b BlockID) ToRPC() (any, error) {
	switch {
	case b.Number != nil && b.Hash == "" && b.Tag == "":
		return map[string]uint64{"block_number": *b.Number}, nil
	case b.Number == nil && b.Hash != "" && b.Tag == "":
		if !blockHashPattern.MatchString(b.Hash) {
			return nil, fmt.Errorf("Invalid block ID: %q", b.Hash)
		}
		return map[string]string{"block_hash": b.Hash}, nil
	case b.Number == nil && b.Hash == "" && b.Tag != "":
		if !isBlockTag(b.Tag) {
			return nil, fmt.Errorf("Invalid block ID: %q", string(b.Tag))
		}
		return string(b.Tag), nil
	}
	return nil, fmt.Errorf("Invalid block ID: %s", b)
}

func (b BlockID) String() string {
	switch {
	case b.Number != nil:
		return fmt.Sprintf("%d", *b.Number)
	case b.Hash != "":
		return b.Hash
	default:
		return string(b.Tag)
	}
}
