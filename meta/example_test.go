package meta_test

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/go-metacache/metacache/meta"
)

func ExampleWriteRequest() {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	req := meta.NewRequest(meta.CmdGet, "user:42", nil).
		AddReturnValue().
		AddReturnTTL()

	if err := meta.WriteRequest(w, req); err != nil {
		panic(err)
	}
	fmt.Print(buf.String())
	// Output:
	// mg user:42 v t
}

func ExampleReadResponse() {
	r := bufio.NewReader(bytes.NewReader([]byte("VA 3 t60\r\nbar\r\n")))

	resp, err := meta.ReadResponse(r)
	if err != nil {
		panic(err)
	}
	fmt.Println(resp.Status, string(resp.Data))
	// Output:
	// VA bar
}
