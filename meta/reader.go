package meta

import (
	"bufio"
	"strconv"
	"strings"
	"sync"
)

var responsePool = sync.Pool{
	New: func() any { return new(Response) },
}

// GetResponse returns a pooled, zeroed Response.
func GetResponse() *Response {
	r := responsePool.Get().(*Response)
	r.Status = ""
	r.Data = nil
	r.Flags = nil
	r.Error = nil
	return r
}

// PutResponse returns a Response to the pool. Callers must not retain r or
// r.Data after calling this.
func PutResponse(r *Response) {
	responsePool.Put(r)
}

// ReadResponse reads and parses a single meta protocol reply line, plus its
// data block when the status is VA.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	return parseResponseLine(r, line)
}

// ReadResponseBatch reads up to n pipelined responses. If stopOnNoOp is
// true, reading stops early when a response carries no opaque-bearing
// continuation marker — reserved for future mn-style batch terminators;
// currently it simply reads n responses.
func ReadResponseBatch(r *bufio.Reader, n int, stopOnNoOp bool) ([]*Response, error) {
	_ = stopOnNoOp
	responses := make([]*Response, 0, n)
	for i := 0; i < n; i++ {
		resp, err := ReadResponse(r)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// PeekStatus reports the status token of the next reply without consuming
// it, for callers that want to branch before committing to a full parse.
func PeekStatus(r *bufio.Reader) (StatusType, error) {
	peek, err := r.Peek(2)
	if err != nil {
		return "", err
	}
	return StatusType(peek), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", &ParseError{Message: "reading status line", Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseResponseLine(r *bufio.Reader, line string) (*Response, error) {
	if line == "" {
		return nil, &ParseError{Message: "empty status line"}
	}

	switch {
	case strings.HasPrefix(line, string(ErrorClientPrefix)),
		strings.HasPrefix(line, string(ErrorServerPrefix)),
		line == ErrorGeneric:
		return NewErrorResponse(line), nil
	}

	fields := strings.Split(line, " ")
	status := StatusType(fields[0])

	resp := GetResponse()
	resp.Status = status

	switch status {
	case StatusVA:
		if len(fields) < 2 {
			return nil, &ParseError{Message: "VA line missing size: " + line}
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &ParseError{Message: "VA line bad size: " + line, Err: err}
		}
		flags, err := parseFlags(fields[2:])
		if err != nil {
			return nil, err
		}
		resp.Flags = flags

		data := make([]byte, size+len(CRLF))
		if _, err := readFull(r, data); err != nil {
			return nil, &ParseError{Message: "reading data block", Err: err}
		}
		resp.Data = data[:size]

	default:
		flags, err := parseFlags(fields[1:])
		if err != nil {
			return nil, err
		}
		resp.Flags = flags
	}

	return resp, nil
}

func parseFlags(tokens []string) (Flags, error) {
	flags := make(Flags, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		flags = append(flags, Flag{Type: FlagType(tok[0]), Token: tok[1:]})
	}
	return flags, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
