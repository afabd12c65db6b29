package strategy

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/oracle"
)

// ABI argument layouts for the opaque parameter blobs each strategy
// variant carries. Encoders exist for order-building tooling and tests;
// settlement only decodes.
var (
	uint256Type     = mustType("uint256")
	bytes32Type     = mustType("bytes32")
	bytesType       = mustType("bytes")
	bytes32ListType = mustType("bytes32[]")

	// floor premium/discount and USD ask: a single uint256
	singleUintArgs = abi.Arguments{{Type: uint256Type}}

	// collection offer maker: cooldown seconds
	collectionMakerArgs = abi.Arguments{{Type: uint256Type}}
	// collection offer maker, proof variant: cooldown seconds + merkle root
	collectionMakerProofArgs = abi.Arguments{{Type: uint256Type}, {Type: bytes32Type}}

	// collection offer taker: item id + attestation (id, payload, timestamp, sig)
	collectionTakerArgs = abi.Arguments{
		{Type: uint256Type}, {Type: bytes32Type}, {Type: bytesType}, {Type: uint256Type}, {Type: bytesType},
	}
	// proof variant appends the membership proof
	collectionTakerProofArgs = abi.Arguments{
		{Type: uint256Type}, {Type: bytes32Type}, {Type: bytesType}, {Type: uint256Type}, {Type: bytesType}, {Type: bytes32ListType},
	}
)

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("abi type " + t + ": " + err.Error())
	}
	return ty
}

// EncodeUintParam packs a single uint256 parameter (floor premium or
// discount, USD ask price).
func EncodeUintParam(v *big.Int) ([]byte, error) {
	return singleUintArgs.Pack(v)
}

func decodeUintParam(data []byte) (*big.Int, error) {
	vals, err := singleUintArgs.Unpack(data)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// CollectionMakerParams is the decoded maker side of a collection offer.
type CollectionMakerParams struct {
	Cooldown int64       // max tolerated seconds since the item's last transfer
	Root     common.Hash // item-set restriction; only set for the proof variant
}

// EncodeCollectionMakerParams packs maker params for the plain variant.
func EncodeCollectionMakerParams(cooldownSeconds int64) ([]byte, error) {
	return collectionMakerArgs.Pack(big.NewInt(cooldownSeconds))
}

// EncodeCollectionMakerProofParams packs maker params for the
// merkle-restricted variant.
func EncodeCollectionMakerProofParams(cooldownSeconds int64, root common.Hash) ([]byte, error) {
	return collectionMakerProofArgs.Pack(big.NewInt(cooldownSeconds), root)
}

func decodeCollectionMakerParams(data []byte, withProof bool) (CollectionMakerParams, error) {
	var p CollectionMakerParams

	args := collectionMakerArgs
	if withProof {
		args = collectionMakerProofArgs
	}
	vals, err := args.Unpack(data)
	if err != nil {
		return p, err
	}

	cooldown := vals[0].(*big.Int)
	if !cooldown.IsInt64() {
		return p, fmt.Errorf("cooldown out of range")
	}
	p.Cooldown = cooldown.Int64()

	if withProof {
		p.Root = common.Hash(vals[1].([32]byte))
	}
	return p, nil
}

// CollectionTakerParams is the decoded taker side of a collection offer:
// the specific item being sold plus the oracle attestation for it.
type CollectionTakerParams struct {
	ItemID      *big.Int
	Attestation oracle.Attestation
	Proof       []common.Hash
}

// EncodeCollectionTakerParams packs taker params for the plain variant.
func EncodeCollectionTakerParams(itemID *big.Int, att *oracle.Attestation) ([]byte, error) {
	return collectionTakerArgs.Pack(
		itemID, [32]byte(att.ID), att.Payload, big.NewInt(att.Timestamp), att.Signature,
	)
}

// EncodeCollectionTakerProofParams packs taker params for the
// merkle-restricted variant.
func EncodeCollectionTakerProofParams(itemID *big.Int, att *oracle.Attestation, proof []common.Hash) ([]byte, error) {
	rawProof := make([][32]byte, len(proof))
	for i, h := range proof {
		rawProof[i] = h
	}
	return collectionTakerProofArgs.Pack(
		itemID, [32]byte(att.ID), att.Payload, big.NewInt(att.Timestamp), att.Signature, rawProof,
	)
}

func decodeCollectionTakerParams(data []byte, withProof bool) (CollectionTakerParams, error) {
	var p CollectionTakerParams

	args := collectionTakerArgs
	if withProof {
		args = collectionTakerProofArgs
	}
	vals, err := args.Unpack(data)
	if err != nil {
		return p, err
	}

	p.ItemID = vals[0].(*big.Int)
	p.Attestation.ID = common.Hash(vals[1].([32]byte))
	p.Attestation.Payload = vals[2].([]byte)

	ts := vals[3].(*big.Int)
	if !ts.IsInt64() {
		return p, fmt.Errorf("attestation timestamp out of range")
	}
	p.Attestation.Timestamp = ts.Int64()
	p.Attestation.Signature = vals[4].([]byte)

	if withProof {
		raw := vals[5].([][32]byte)
		p.Proof = make([]common.Hash, len(raw))
		for i, h := range raw {
			p.Proof[i] = common.Hash(h)
		}
	}
	return p, nil
}
