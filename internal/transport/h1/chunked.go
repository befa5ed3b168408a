package h1

import (
	"bytes"
	"strconv"

	errs "github.com/frankli0324/go-httpconn/internal/errors"
)

// appendChunk frames data as a single chunk. Zero-length data is not sent
// since it looks like the last-chunk.
func appendChunk(buf, data []byte) []byte {
	if len(data) == 0 {
		return buf
	}
	buf = strconv.AppendUint(buf, uint64(len(data)), 16)
	buf = append(buf, "\r\n"...)
	buf = append(buf, data...)
	return append(buf, "\r\n"...)
}

func parseChunkSize(line []byte) (uint64, error) {
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i] // chunk extensions are ignored
	}
	line = bytes.TrimRight(line, " \t")
	if len(line) == 0 {
		return 0, errs.RemoteProtocol("empty chunk size")
	}
	if len(line) > 16 {
		return 0, errs.RemoteProtocol("http chunk length too large")
	}
	var n uint64
	for _, b := range line {
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, errs.RemoteProtocol("invalid byte in chunk length")
		}
		n <<= 4
		n |= uint64(b)
	}
	return n, nil
}
