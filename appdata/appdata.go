// Package appdata builds the app-data document attached to the fee module
// orders, and its hash and content identifier.
package appdata

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	DefaultAppCode     = "CoWFeeModule"
	DefaultEnvironment = "prod"
	SchemaVersion      = "1.1.0"
)

// Document is the app-data document. Fields are declared in key order so
// the encoding is deterministic.
type Document struct {
	AppCode     string         `json:"appCode"`
	Environment string         `json:"environment"`
	Metadata    map[string]any `json:"metadata"`
	Version     string         `json:"version"`
}

// Info is an encoded document with its identifiers.
type Info struct {
	// Content is the JSON text sent with orders.
	Content string
	// Hash is keccak256(Content), the appData value of orders and of the
	// fee module.
	Hash common.Hash
	// CID is the content identifier of Content (CIDv1, raw codec,
	// keccak-256 multihash).
	CID cid.Cid
}

// Default returns the document of the fee module orders.
func Default() Document {
	return Document{
		AppCode:     DefaultAppCode,
		Environment: DefaultEnvironment,
		Metadata:    map[string]any{},
		Version:     SchemaVersion,
	}
}

// Encode serialises the document and computes its identifiers.
func (d Document) Encode() (*Info, error) {
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	content, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode app data: %w", err)
	}
	hash := crypto.Keccak256Hash(content)
	mh, err := multihash.Encode(hash.Bytes(), multihash.KECCAK_256)
	if err != nil {
		return nil, fmt.Errorf("failed to build multihash: %w", err)
	}
	return &Info{
		Content: string(content),
		Hash:    hash,
		CID:     cid.NewCidV1(cid.Raw, mh),
	}, nil
}

// CheckHash fails when the encoded document does not match the app data
// expected on chain.
func (i *Info) CheckHash(expected common.Hash) error {
	if i.Hash != expected {
		return fmt.Errorf("appData mismatch: %s != %s", i.Hash.Hex(), expected.Hex())
	}
	return nil
}
