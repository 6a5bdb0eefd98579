package offer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/klauspost/compress/zlib"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// TextHRP is the human-readable prefix of the shareable text encoding.
const TextHRP = "offer"

// Encoding versions negotiate the compression dictionary. Version 1
// introduced the settlement script and is the floor; version 2 added the
// token outer-layer template.
const (
	minEncodingVersion uint16 = 1
	maxEncodingVersion uint16 = 2
)

var ErrUnknownEncodingVersion = errors.New("unsupported offer encoding version")

// SpendBundle renders the offer as one ordinary spend bundle: the requested
// payments become synthetic zero-parent spends of the settlement script
// whose solutions carry the grouped (nonce, payments) pairs, followed by the
// real spends. This representation is lossless and defines the canonical
// byte encoding.
func (o *Offer) SpendBundle() chain.SpendBundle {
	spends := make([]chain.CoinSpend, 0, len(o.requested)+len(o.bundle.CoinSpends))
	for _, assetID := range sortedAssetIDs(o.requested) {
		puzzle := chain.SettlementProgram
		if assetID != NativeAsset {
			puzzle = chain.WrapTokenPuzzle(assetID, chain.SettlementProgram)
		}
		spends = append(spends, chain.CoinSpend{
			Coin: chain.Coin{
				ParentCoinInfo: chain.Zero32,
				PuzzleHash:     chain.WrappedSettlementPuzzleHash(assetID),
				Amount:         0,
			},
			PuzzleReveal: puzzle,
			Solution: encodeSettlementSolution(settlementSolution{
				Groups: groupByNonce(o.requested[assetID]),
			}),
		})
	}
	spends = append(spends, o.bundle.CoinSpends...)
	return chain.SpendBundle{
		CoinSpends:          spends,
		AggregatedSignature: o.bundle.AggregatedSignature,
	}
}

// FromSpendBundle reconstructs an Offer from its spend-bundle form by
// stripping the synthetic settlement spends back out into requested
// payments.
func FromSpendBundle(sb chain.SpendBundle) (*Offer, error) {
	requested := make(map[chain.Bytes32][]NotarizedPayment)
	var real []chain.CoinSpend
	for _, cs := range sb.CoinSpends {
		assetID, synthetic := syntheticSettlementAsset(cs)
		if !synthetic {
			real = append(real, cs)
			continue
		}
		sol, err := parseSettlementSolution(cs.Solution)
		if err != nil {
			return nil, fmt.Errorf("requested payments of asset %s: %w", assetID, err)
		}
		for _, g := range sol.Groups {
			for _, p := range g.Payments {
				requested[assetID] = append(requested[assetID], NotarizedPayment{
					Payment: p,
					Nonce:   g.Nonce,
				})
			}
		}
		if _, ok := requested[assetID]; !ok {
			requested[assetID] = nil
		}
	}
	return New(requested, chain.SpendBundle{
		CoinSpends:          real,
		AggregatedSignature: sb.AggregatedSignature,
	})
}

// syntheticSettlementAsset reports whether the spend is a synthetic
// requested-payments placeholder and, if so, which asset it belongs to.
func syntheticSettlementAsset(cs chain.CoinSpend) (chain.Bytes32, bool) {
	if !cs.Coin.IsEphemeral() {
		return chain.Bytes32{}, false
	}
	if cs.PuzzleReveal.Equal(chain.SettlementProgram) {
		return NativeAsset, true
	}
	if assetID, inner, ok := chain.MatchTokenPuzzle(cs.PuzzleReveal); ok &&
		inner.Equal(chain.SettlementProgram) {
		return assetID, true
	}
	return chain.Bytes32{}, false
}

// Bytes returns the canonical byte encoding: the serialized spend-bundle
// form.
func (o *Offer) Bytes() []byte {
	return o.SpendBundle().Serialize()
}

// FromBytes decodes an offer produced by Bytes.
func FromBytes(b []byte) (*Offer, error) {
	sb, err := chain.DeserializeSpendBundle(b)
	if err != nil {
		return nil, err
	}
	return FromSpendBundle(sb)
}

// encodingVersion picks the lowest version whose dictionary covers every
// revealed script in the bundle.
func (o *Offer) encodingVersion() uint16 {
	version := minEncodingVersion
	for _, cs := range o.SpendBundle().CoinSpends {
		if _, _, ok := chain.MatchTokenPuzzle(cs.PuzzleReveal); ok && version < 2 {
			version = 2
		}
	}
	return version
}

func dictForVersion(version uint16) []byte {
	dict := append([]byte{}, chain.SettlementProgram...)
	if version >= 2 {
		dict = append(dict, chain.WrapTokenPuzzle(chain.Zero32, chain.SettlementProgram)...)
	}
	return dict
}

// Compress deduplicates repeated revealed scripts via a dictionary-seeded
// deflate pass, prefixed with the negotiated version.
func (o *Offer) Compress() ([]byte, error) {
	version := o.encodingVersion()
	s := bufferutil.NewSerializer()
	s.WriteUint16(version)

	var compressed bytes.Buffer
	w, err := zlib.NewWriterLevelDict(&compressed, zlib.BestCompression, dictForVersion(version))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(o.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	s.WriteBytes(compressed.Bytes())
	return s.Bytes(), nil
}

// Decompress decodes a compressed offer payload.
func Decompress(b []byte) (*Offer, error) {
	d := bufferutil.NewDeserializer(b)
	version, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	if version < minEncodingVersion || version > maxEncodingVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEncodingVersion, version)
	}
	stream, err := d.ReadBytes(len(b) - 2)
	if err != nil {
		return nil, err
	}
	r, err := zlib.NewReaderDict(bytes.NewReader(stream), dictForVersion(version))
	if err != nil {
		return nil, fmt.Errorf("opening offer stream: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing offer: %w", err)
	}
	return FromBytes(raw)
}

// Encode returns the human-shareable checksummed base-32 text form.
func (o *Offer) Encode() (string, error) {
	return o.EncodeWithPrefix(TextHRP)
}

// EncodeWithPrefix is Encode with a custom human-readable prefix.
func (o *Offer) EncodeWithPrefix(hrp string) (string, error) {
	compressed, err := o.Compress()
	if err != nil {
		return "", err
	}
	converted, err := bech32.ConvertBits(compressed, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(hrp, converted)
}

// Decode parses the text form back into an Offer.
func Decode(text string) (*Offer, error) {
	return DecodeWithPrefix(text, TextHRP)
}

// DecodeWithPrefix is Decode with a custom human-readable prefix.
func DecodeWithPrefix(text, expectedHRP string) (*Offer, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(text))
	if err != nil {
		return nil, fmt.Errorf("decoding offer text: %w", err)
	}
	if hrp != expectedHRP {
		return nil, fmt.Errorf("unexpected prefix %q", hrp)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	return Decompress(converted)
}
