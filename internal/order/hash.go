package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 type hashes (pre-computed keccak256 of the type strings).
// Ask and bid orders share a field layout but hash under distinct type
// strings, so the same field values in a different role produce a
// different digest.
var (
	// keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	askOrderTypeHash = crypto.Keccak256Hash([]byte(
		"AskOrder(uint256 globalNonce,uint256 subsetNonce,uint256 orderNonce,uint256 strategyId,uint256 assetType,address collection,address currency,address signer,uint256 startTime,uint256 endTime,uint256 price,uint256[] itemIds,uint256[] amounts,bytes params)",
	))

	bidOrderTypeHash = crypto.Keccak256Hash([]byte(
		"BidOrder(uint256 globalNonce,uint256 subsetNonce,uint256 orderNonce,uint256 strategyId,uint256 assetType,address collection,address currency,address signer,uint256 startTime,uint256 endTime,uint256 price,uint256[] itemIds,uint256[] amounts,bytes params)",
	))

	merkleRootTypeHash = crypto.Keccak256Hash([]byte(
		"MerkleRoot(bytes32 root)",
	))
)

// Domain holds the EIP-712 domain separator fields. A signature produced
// under one domain (chain id + deployment address) is not replayable under
// another.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Separator computes the EIP-712 domain separator hash.
func (d *Domain) Separator() common.Hash {
	return crypto.Keccak256Hash(
		eip712DomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		common.LeftPadBytes(d.ChainID.Bytes(), 32),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// Hasher produces signing digests for maker orders and merkle batch roots
// under a fixed domain.
type Hasher struct {
	domain    *Domain
	separator common.Hash
}

// NewHasher creates a Hasher for the given domain. The separator is
// computed once; the domain must not be mutated afterwards.
func NewHasher(domain *Domain) *Hasher {
	return &Hasher{
		domain:    domain,
		separator: domain.Separator(),
	}
}

// Hash computes the typed struct hash of the maker order. Variable-length
// fields (item ids, amounts, params) are folded through their own keccak
// so the top-level encoding stays fixed-size.
func (h *Hasher) Hash(m *MakerOrder) common.Hash {
	typeHash := askOrderTypeHash
	if m.Side == Bid {
		typeHash = bidOrderTypeHash
	}
	return crypto.Keccak256Hash(
		typeHash.Bytes(),
		padUint64(m.GlobalNonce),
		padUint64(m.SubsetNonce),
		padUint64(m.OrderNonce),
		padUint64(uint64(m.StrategyID)),
		padUint64(uint64(m.AssetType)),
		common.LeftPadBytes(m.Collection.Bytes(), 32),
		common.LeftPadBytes(m.Currency.Bytes(), 32),
		common.LeftPadBytes(m.Signer.Bytes(), 32),
		padUint64(uint64(m.StartTime)),
		padUint64(uint64(m.EndTime)),
		common.LeftPadBytes(m.Price.Bytes(), 32),
		hashBigSlice(m.ItemIDs).Bytes(),
		hashBigSlice(m.Amounts).Bytes(),
		crypto.Keccak256(m.Params),
	)
}

// Digest computes the final signing digest for a maker order:
// keccak256("\x19\x01" || domainSeparator || structHash).
func (h *Hasher) Digest(m *MakerOrder) common.Hash {
	return h.digest(h.Hash(m))
}

// BatchDigest computes the signing digest for a merkle batch root. One
// signature over this digest authorizes every order whose hash proves
// membership under the root.
func (h *Hasher) BatchDigest(root common.Hash) common.Hash {
	structHash := crypto.Keccak256Hash(
		merkleRootTypeHash.Bytes(),
		root.Bytes(),
	)
	return h.digest(structHash)
}

func (h *Hasher) digest(structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		h.separator.Bytes(),
		structHash.Bytes(),
	)
}

// hashBigSlice canonicalizes a variable-length uint256 array into a single
// word: keccak256 of the concatenated left-padded elements. An empty slice
// hashes the empty byte string, matching abi.encodePacked of no elements.
func hashBigSlice(vals []*big.Int) common.Hash {
	packed := make([]byte, 0, len(vals)*32)
	for _, v := range vals {
		packed = append(packed, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return crypto.Keccak256Hash(packed)
}

func padUint64(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}
