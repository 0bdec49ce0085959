package persist

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/playerauction/sessionapi"
)

const envelopeVersion = 1

var (
	ErrDigestMismatch  = errors.New("snapshot digest mismatch")
	ErrBadSignature    = errors.New("snapshot signature invalid")
	ErrUnsigned        = errors.New("snapshot is not signed")
	ErrNoVerifier      = errors.New("snapshot is signed but no verification key is configured")
	errUnsupportedAlgo = errors.New("unsupported COSE algorithm")
)

// COSE header label and value for ES256.
const (
	coseHeaderAlg = 1
	coseAlgES256  = -7
)

var snapshotEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Sort: cbor.SortCanonical, Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Envelope wraps the CBOR encoded snapshot with its SHA-256 digest.
type Envelope struct {
	Version  int    `cbor:"1,keyasint"`
	Digest   []byte `cbor:"2,keyasint"`
	Snapshot []byte `cbor:"3,keyasint"`
}

// VerifyDigest checks the digest against the snapshot bytes.
func (e Envelope) VerifyDigest() error {
	sum := sha256.Sum256(e.Snapshot)
	if !bytes.Equal(sum[:], e.Digest) {
		return fmt.Errorf("%w: stored %x, computed %x", ErrDigestMismatch, e.Digest, sum)
	}
	return nil
}

// Decode unmarshals the wrapped snapshot without checking the digest.
func (e Envelope) Decode() (sessionapi.Snapshot, error) {
	var snap sessionapi.Snapshot
	if err := cbor.Unmarshal(e.Snapshot, &snap); err != nil {
		return sessionapi.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Blob is a parsed snapshot blob. Signed blobs are untagged COSE_Sign1
// arrays [protected, unprotected, payload, signature] whose payload is the
// CBOR envelope; unsigned blobs are the envelope itself.
type Blob struct {
	Signed    bool
	Protected []byte
	Signature []byte
	Payload   []byte
	Envelope  Envelope
}

// ParseBlob splits a stored blob into its parts. It checks structure only.
func ParseBlob(data []byte) (Blob, error) {
	var b Blob
	payload := data

	var coseArray []any
	if err := cbor.Unmarshal(data, &coseArray); err == nil {
		if len(coseArray) != 4 {
			return Blob{}, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
		}
		var ok bool
		if b.Protected, ok = coseArray[0].([]byte); !ok {
			return Blob{}, fmt.Errorf("invalid protected headers")
		}
		if payload, ok = coseArray[2].([]byte); !ok {
			return Blob{}, fmt.Errorf("invalid payload in COSE structure")
		}
		if b.Signature, ok = coseArray[3].([]byte); !ok {
			return Blob{}, fmt.Errorf("invalid signature")
		}
		b.Signed = true
	}

	b.Payload = payload
	if err := cbor.Unmarshal(payload, &b.Envelope); err != nil {
		return Blob{}, fmt.Errorf("parse snapshot envelope: %w", err)
	}
	if b.Envelope.Version != envelopeVersion {
		return Blob{}, fmt.Errorf("unsupported snapshot envelope version %d", b.Envelope.Version)
	}
	return b, nil
}

// VerifySignature checks the COSE_Sign1 signature with verifier.
func (b Blob) VerifySignature(verifier cose.Verifier) error {
	if !b.Signed {
		return ErrUnsigned
	}
	var headers map[int]int
	if err := cbor.Unmarshal(b.Protected, &headers); err != nil {
		return fmt.Errorf("parse protected headers: %w", err)
	}
	if headers[coseHeaderAlg] != coseAlgES256 {
		return fmt.Errorf("%w: %d", errUnsupportedAlgo, headers[coseHeaderAlg])
	}

	toBeSigned, err := sigStructure(b.Protected, b.Payload)
	if err != nil {
		return err
	}
	if err := verifier.Verify(toBeSigned, b.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

// sigStructure builds the COSE_Sign1 Sig_structure with empty external_aad.
func sigStructure(protected, payload []byte) ([]byte, error) {
	data, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return data, nil
}

// Codec turns snapshots into stored blobs and back. With a signer, blobs are
// signed; with a verifier, only blobs carrying a valid signature decode.
type Codec struct {
	signer   cose.Signer
	verifier cose.Verifier
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithSigner signs every encoded blob with signer.
func WithSigner(signer cose.Signer) CodecOption {
	return func(c *Codec) { c.signer = signer }
}

// WithVerifier makes Decode reject blobs without a valid signature.
func WithVerifier(verifier cose.Verifier) CodecOption {
	return func(c *Codec) { c.verifier = verifier }
}

// NewCodec returns a codec with the given options applied.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode wraps snap in a digest envelope and signs it when a signer is set.
func (c *Codec) Encode(snap sessionapi.Snapshot) ([]byte, error) {
	payload, err := snapshotEncMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	envelope, err := snapshotEncMode.Marshal(Envelope{Version: envelopeVersion, Digest: sum[:], Snapshot: payload})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if c.signer == nil {
		return envelope, nil
	}

	protected, err := cbor.Marshal(map[int]int{coseHeaderAlg: coseAlgES256})
	if err != nil {
		return nil, fmt.Errorf("encode protected headers: %w", err)
	}
	toBeSigned, err := sigStructure(protected, envelope)
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.Sign(rand.Reader, toBeSigned)
	if err != nil {
		return nil, fmt.Errorf("sign snapshot: %w", err)
	}
	blob, err := cbor.Marshal([]any{protected, map[int]any{}, envelope, signature})
	if err != nil {
		return nil, fmt.Errorf("encode COSE_Sign1: %w", err)
	}
	return blob, nil
}

// Decode parses a stored blob and returns its snapshot once the digest and
// any required signature check out.
func (c *Codec) Decode(data []byte) (sessionapi.Snapshot, error) {
	blob, err := ParseBlob(data)
	if err != nil {
		return sessionapi.Snapshot{}, err
	}

	switch {
	case c.verifier != nil:
		if err := blob.VerifySignature(c.verifier); err != nil {
			return sessionapi.Snapshot{}, err
		}
	case blob.Signed:
		return sessionapi.Snapshot{}, ErrNoVerifier
	}

	if err := blob.Envelope.VerifyDigest(); err != nil {
		return sessionapi.Snapshot{}, err
	}
	return blob.Envelope.Decode()
}
