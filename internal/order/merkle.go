package order

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyBatch = errors.New("merkle batch contains no orders")

// MerkleBatch lets one signature authorize a set of maker orders. The maker
// signs the root; at settlement the proof establishes that the submitted
// order's hash is a member.
type MerkleBatch struct {
	Root  common.Hash
	Proof []common.Hash
}

// VerifyProof walks the proof from the leaf (an order hash) to the root
// using sorted-pair keccak at every level.
func VerifyProof(root, leaf common.Hash, proof []common.Hash) bool {
	computed := leaf
	for _, node := range proof {
		computed = hashPair(computed, node)
	}
	return computed == root
}

// BuildMerkleTree computes the root and per-leaf proofs for a set of order
// hashes. Odd nodes at any level are promoted unchanged. Used by signing
// tooling and tests; settlement only ever verifies.
func BuildMerkleTree(leaves []common.Hash) (common.Hash, [][]common.Hash, error) {
	if len(leaves) == 0 {
		return common.Hash{}, nil, ErrEmptyBatch
	}

	proofs := make([][]common.Hash, len(leaves))
	// index of each original leaf within the current level
	pos := make([]int, len(leaves))
	for i := range pos {
		pos[i] = i
	}

	level := append([]common.Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for leafIdx, p := range pos {
			i := p
			if i^1 < len(level) {
				proofs[leafIdx] = append(proofs[leafIdx], level[i^1])
			}
			pos[leafIdx] = i / 2
		}
		level = next
	}
	return level[0], proofs, nil
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}
