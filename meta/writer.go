package meta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// ValidateKey enforces the protocol's key constraints: non-empty, at most
// MaxKeyLength bytes, and no embedded whitespace unless the caller has
// already base64-encoded it (base64 never produces spaces, so the check
// stays the same either way — hasBase64Flag is accepted for symmetry with
// callers that branch on it).
func ValidateKey(key string, hasBase64Flag bool) error {
	_ = hasBase64Flag
	if len(key) < MinKeyLength {
		return &InvalidKeyError{Message: "key is empty"}
	}
	if len(key) > MaxKeyLength {
		return &InvalidKeyError{Message: fmt.Sprintf("key length %d exceeds %d", len(key), MaxKeyLength)}
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case ' ', '\r', '\n', '\t':
			return &InvalidKeyError{Message: "key contains whitespace"}
		}
	}
	return nil
}

// WriteRequest serializes req onto w in meta protocol wire format:
//
//	<command> <key> [flags...]\r\n
//	[<data>\r\n]
//
// ms requests carry their data length via the S flag (req must already
// have one added, e.g. via Request.AddSize) rather than a positional
// token, matching this package's wire grammar.
func WriteRequest(w io.Writer, req *Request) error {
	if err := ValidateKey(req.Key, req.HasFlag(FlagBase64Key)); err != nil {
		return err
	}
	if bw, ok := w.(*bufio.Writer); ok {
		return writeRequestBuffered(bw, req)
	}
	return writeRequestUnbuffered(w, req)
}

func writeRequestBuffered(w *bufio.Writer, req *Request) error {
	if err := writeRequestLine(w, req); err != nil {
		return err
	}
	if req.Command == CmdSet {
		if _, err := w.Write(req.Data); err != nil {
			return err
		}
		if _, err := w.WriteString(CRLF); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeRequestUnbuffered(w io.Writer, req *Request) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := writeRequestLine(buf, req); err != nil {
		return err
	}
	if req.Command == CmdSet {
		buf.Write(req.Data)
		buf.WriteString(CRLF)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

type byteStringWriter interface {
	io.Writer
	io.ByteWriter
	WriteString(string) (int, error)
}

func writeRequestLine(w byteStringWriter, req *Request) error {
	if _, err := w.WriteString(string(req.Command)); err != nil {
		return err
	}
	if err := w.WriteByte(' '); err != nil {
		return err
	}
	if _, err := w.WriteString(req.Key); err != nil {
		return err
	}
	for _, flag := range req.Flags {
		if err := w.WriteByte(' '); err != nil {
			return err
		}
		if err := w.WriteByte(byte(flag.Type)); err != nil {
			return err
		}
		if flag.Token != "" {
			if _, err := w.WriteString(flag.Token); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString(CRLF)
	return err
}
