package codec

import "errors"

// Codec error conditions for classification using errors.Is().
var (
	// ErrUnsupportedFormat indicates no decoder or encoder can handle the
	// requested container or codec.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrCorruptFile indicates the container or bitstream could not be
	// parsed by a decoder that should support it.
	ErrCorruptFile = errors.New("corrupt audio file")

	// ErrEncode indicates the output file could not be produced.
	ErrEncode = errors.New("audio encode failed")
)
