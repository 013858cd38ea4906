package coldstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hupe1980/idgo/idset"
	"github.com/hupe1980/idgo/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the snapshot payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio). The default.
	CompressionZSTD Compression = 2
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion byte = 1

	// headerSize is the size of the snapshot header in bytes.
	// Magic (4) + Version (1) + Compression (1) + Reserved (2) +
	// Cardinality (8) + RawLen (8) + PayloadLen (8) + CRC32C (4) = 36 bytes
	headerSize = 36
)

// snapshotMagic identifies snapshot blobs ("IDSN").
var snapshotMagic = [4]byte{'I', 'D', 'S', 'N'}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// EncodeSnapshot serializes a set into the snapshot wire format:
//   - Magic (4 bytes): "IDSN"
//   - Version (1 byte): format version
//   - Compression (1 byte): payload compression actually applied
//   - Reserved (2 bytes): zero
//   - Cardinality (8 bytes): number of ids in the set
//   - RawLen (8 bytes): uncompressed payload length
//   - PayloadLen (8 bytes): stored payload length
//   - CRC32C (4 bytes): checksum of the stored payload
//   - Payload: portable roaring serialization
//
// All integers are little-endian. When compression does not shrink the
// payload it is stored uncompressed and the compression byte records that,
// regardless of what was requested.
func EncodeSnapshot(s *idset.Set, compression Compression) ([]byte, error) {
	var raw bytes.Buffer
	raw.Grow(int(s.GetSizeInBytes()))
	if _, err := s.WriteTo(&raw); err != nil {
		return nil, fmt.Errorf("coldstore: serialize set: %w", err)
	}
	rawData := raw.Bytes()

	payload := rawData
	applied := compression

	switch compression {
	case CompressionNone:
		// Store as-is.

	case CompressionLZ4:
		compressed := make([]byte, lz4.CompressBlockBound(len(rawData)))
		n, err := lz4.CompressBlock(rawData, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("coldstore: lz4 compress: %w", err)
		}
		if n == 0 || n >= len(rawData) {
			applied = CompressionNone // incompressible
		} else {
			payload = compressed[:n]
		}

	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed := enc.EncodeAll(rawData, nil)
		putZstdEncoder(enc)

		if len(compressed) >= len(rawData) {
			applied = CompressionNone
		} else {
			payload = compressed
		}

	default:
		return nil, fmt.Errorf("coldstore: unknown compression type %d", compression)
	}

	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:4], snapshotMagic[:])
	buf[4] = snapshotVersion
	buf[5] = byte(applied)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(s.Len()))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(rawData)))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(len(payload)))
	binary.LittleEndian.PutUint32(buf[32:36], hash.CRC32C(payload))
	copy(buf[headerSize:], payload)

	return buf, nil
}

// DecodeSnapshot parses snapshot data produced by EncodeSnapshot. Every
// header field is validated before the payload is trusted; corruption
// surfaces as ErrInvalidSnapshot, ErrUnsupportedVersion or ErrChecksum.
func DecodeSnapshot(data []byte) (*idset.Set, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidSnapshot, len(data), headerSize)
	}

	if !bytes.Equal(data[0:4], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}

	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: got version %d, expected %d", ErrUnsupportedVersion, data[4], snapshotVersion)
	}

	compression := Compression(data[5])
	cardinality := binary.LittleEndian.Uint64(data[8:16])
	rawLen := binary.LittleEndian.Uint64(data[16:24])
	payloadLen := binary.LittleEndian.Uint64(data[24:32])
	checksum := binary.LittleEndian.Uint32(data[32:36])

	if uint64(len(data)-headerSize) != payloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrInvalidSnapshot, len(data)-headerSize, payloadLen)
	}

	payload := data[headerSize:]
	if got := hash.CRC32C(payload); got != checksum {
		return nil, fmt.Errorf("%w: computed %08x, stored %08x", ErrChecksum, got, checksum)
	}

	var rawData []byte
	switch compression {
	case CompressionNone:
		rawData = payload

	case CompressionLZ4:
		decompressed := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, decompressed)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrInvalidSnapshot, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrInvalidSnapshot)
		}
		rawData = decompressed

	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		putZstdDecoder(dec)

		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidSnapshot, err)
		}
		if uint64(len(decoded)) != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrInvalidSnapshot)
		}
		rawData = decoded

	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrInvalidSnapshot, compression)
	}

	s := idset.New()
	if _, err := s.ReadFrom(bytes.NewReader(rawData)); err != nil {
		return nil, fmt.Errorf("%w: roaring payload: %v", ErrInvalidSnapshot, err)
	}

	if uint64(s.Len()) != cardinality {
		return nil, fmt.Errorf("%w: payload holds %d ids, header says %d", ErrInvalidSnapshot, s.Len(), cardinality)
	}

	return s, nil
}
