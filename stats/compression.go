package stats

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// blockCodec picks a compression algorithm for one persisted statistics
// blob by size: snappy for small blobs (table/index stat summaries are a
// few hundred bytes and snappy's near-zero setup cost wins there), lz4 for
// medium blobs, zstd for large ones (a histogram with many buckets),
// mirroring the size-based policy a wider compression engine would apply
// across the whole KV-store's data, scaled down to this package's one
// consumer.
type blockCodec struct {
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
}

const (
	lz4Threshold  = 1024
	zstdThreshold = 10 * 1024
)

// tag identifies which algorithm produced the byte on the wire, so Decode
// doesn't need to guess or carry a side channel.
type codecTag byte

const (
	tagSnappy codecTag = iota
	tagLZ4
	tagZstd
)

func newBlockCodec() *blockCodec {
	return &blockCodec{}
}

// Encode compresses data, prefixing the result with a one-byte algorithm
// tag so Decode is self-describing.
func (c *blockCodec) Encode(data []byte) ([]byte, error) {
	switch {
	case len(data) < lz4Threshold:
		return append([]byte{byte(tagSnappy)}, snappy.Encode(nil, data)...), nil
	case len(data) < zstdThreshold:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return append([]byte{byte(tagLZ4)}, buf.Bytes()...), nil
	default:
		enc, err := c.encoder()
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(tagZstd)}, enc.EncodeAll(data, nil)...), nil
	}
}

func (c *blockCodec) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, body := codecTag(data[0]), data[1:]
	switch tag {
	case tagSnappy:
		return snappy.Decode(nil, body)
	case tagLZ4:
		r := lz4.NewReader(bytes.NewReader(body))
		return io.ReadAll(r)
	case tagZstd:
		dec, err := c.decoder()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("stats: unknown compression tag %d", tag)
	}
}

func (c *blockCodec) encoder() (*zstd.Encoder, error) {
	if c.zstdEncoder == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		c.zstdEncoder = enc
	}
	return c.zstdEncoder, nil
}

func (c *blockCodec) decoder() (*zstd.Decoder, error) {
	if c.zstdDecoder == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		c.zstdDecoder = dec
	}
	return c.zstdDecoder, nil
}
