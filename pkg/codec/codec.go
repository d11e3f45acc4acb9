// Package codec encodes the proof wire shapes as JSON or CBOR.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// Format is a supported wire encoding
type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

func (f Format) ContentType() string {
	if f == FormatCBOR {
		return ContentTypeCBOR
	}
	return ContentTypeJSON
}

func (f Format) String() string {
	if f == FormatCBOR {
		return "cbor"
	}
	return "json"
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding so identical proofs produce identical bytes
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to build cbor encoder: %v", err))
	}
	cborDec, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to build cbor decoder: %v", err))
	}
}

// FormatFromAccept picks CBOR only when the Accept header lists it; anything else is JSON
func FormatFromAccept(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mediaType == ContentTypeCBOR {
			return FormatCBOR
		}
	}
	return FormatJSON
}

// FormatFromContentType maps a response Content-Type to a Format
func FormatFromContentType(contentType string) (Format, error) {
	if contentType == "" {
		return FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatJSON, fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	switch mediaType {
	case ContentTypeJSON, "text/plain":
		return FormatJSON, nil
	case ContentTypeCBOR:
		return FormatCBOR, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// Encode marshals v in the given format
func Encode(format Format, v interface{}) ([]byte, error) {
	switch format {
	case FormatCBOR:
		return cborEnc.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

// Decode unmarshals data in the given format into out. A leading UTF-8 BOM is
// ignored for JSON.
func Decode(format Format, data []byte, out interface{}) error {
	switch format {
	case FormatCBOR:
		return cborDec.Unmarshal(data, out)
	default:
		return json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), out)
	}
}

// EncodeProofResult marshals a proof result
func EncodeProofResult(format Format, result *types.MerkleProofResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("cannot encode nil MerkleProofResult")
	}
	return Encode(format, result)
}

// DecodeProofResult unmarshals a proof result
func DecodeProofResult(format Format, data []byte) (*types.MerkleProofResult, error) {
	var result types.MerkleProofResult
	if err := Decode(format, data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode proof result (%s): %w", format, err)
	}
	return &result, nil
}

// DecodeRootResponse unmarshals a root response
func DecodeRootResponse(format Format, data []byte) (*types.RootResponse, error) {
	var root types.RootResponse
	if err := Decode(format, data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode root response (%s): %w", format, err)
	}
	return &root, nil
}
