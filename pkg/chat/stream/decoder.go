package stream

import (
	"bufio"
	"bytes"
	"io"
)

// LineDecoder reads newline-delimited records from a transport stream.
// A record is only emitted once its terminating newline has been seen, so a
// line split across two network reads never reaches the caller half-decoded.
type LineDecoder struct {
	reader *bufio.Reader
}

// NewLineDecoder wraps r in a decoder. maxLine bounds the buffer used for a
// single record.
func NewLineDecoder(r io.Reader, maxLine int) *LineDecoder {
	return &LineDecoder{
		reader: bufio.NewReaderSize(r, maxLine),
	}
}

// Next returns the next complete non-empty record without its trailing
// newline. io.EOF is returned once the stream is exhausted. A final
// unterminated record is still emitted: the transport closing the stream
// terminates the record too.
func (d *LineDecoder) Next() ([]byte, error) {
	for {
		var full []byte
		for {
			chunk, isPrefix, err := d.reader.ReadLine()
			if err != nil {
				return nil, err
			}
			// ReadLine may hand back an internal buffer, copy before reuse
			full = append(full, chunk...)
			if !isPrefix {
				break
			}
		}
		full = bytes.TrimSpace(full)
		if len(full) > 0 {
			return full, nil
		}
	}
}
