package httpgateway

import (
	"bufio"
	"io"
	"strconv"

	"github.com/rs/zerolog"
)

func newBufReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
