package script

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a script file is compressed
type Compression int

const (
	// CompressionNone reads the file as is
	CompressionNone Compression = iota
	// CompressionSnappy is snappy block format (.sz)
	CompressionSnappy
	// CompressionZstd is zstandard (.zst)
	CompressionZstd
)

// String returns the string representation of the compression
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Extension returns the file suffix for the compression
func (c Compression) Extension() string {
	switch c {
	case CompressionSnappy:
		return ".sz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// codec compresses and decompresses whole script files
type codec struct {
	compression Compression
	zstdEnc     *zstd.Encoder
	zstdDec     *zstd.Decoder
}

func newCodec(c Compression) (*codec, error) {
	cd := &codec{compression: c}

	switch c {
	case CompressionNone, CompressionSnappy:
	case CompressionZstd:
		var err error
		cd.zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		cd.zstdDec, err = zstd.NewReader(nil)
		if err != nil {
			cd.zstdEnc.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}

	return cd, nil
}

func (cd *codec) compress(data []byte) []byte {
	switch cd.compression {
	case CompressionSnappy:
		return snappy.Encode(nil, data)
	case CompressionZstd:
		return cd.zstdEnc.EncodeAll(data, nil)
	default:
		return data
	}
}

func (cd *codec) decompress(data []byte) ([]byte, error) {
	switch cd.compression {
	case CompressionSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snappy: %w", err)
		}
		return decoded, nil
	case CompressionZstd:
		decoded, err := cd.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd: %w", err)
		}
		return decoded, nil
	default:
		return data, nil
	}
}

func (cd *codec) close() {
	if cd.zstdEnc != nil {
		cd.zstdEnc.Close()
	}
	if cd.zstdDec != nil {
		cd.zstdDec.Close()
	}
}
