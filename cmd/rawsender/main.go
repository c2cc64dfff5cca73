package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhdewitt/formserver/internal/config"
	"github.com/nhdewitt/formserver/internal/logging"
)

// toCRLF turns bare LF line endings into CRLF so hand-written request
// files can be sent as is.
func toCRLF(raw []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(raw) + bytes.Count(raw, []byte("\n")))
	for i, b := range raw {
		if b == '\n' && (i == 0 || raw[i-1] != '\r') {
			out.WriteByte('\r')
		}
		out.WriteByte(b)
	}
	return out.Bytes()
}

// send writes raw to addr and returns everything the server answers until
// it closes the connection.
func send(addr string, raw []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("write error: %w", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		return resp, fmt.Errorf("read error: %w", err)
	}
	return resp, nil
}

func main() {
	fs := pflag.NewFlagSet("rawsender", pflag.ExitOnError)
	addr := fs.String("addr", "localhost:9999", "server address")
	file := fs.StringP("file", "f", "-", "request file, - for stdin")
	keepLF := fs.Bool("keep-lf", false, "send line endings unchanged")
	timeout := fs.Duration("timeout", 10*time.Second, "dial and round trip timeout")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.New(config.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	var raw []byte
	if *file == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*file)
	}
	if err != nil {
		logger.Fatal("input error", zap.Error(err))
	}
	if !*keepLF {
		raw = toCRLF(raw)
	}

	resp, err := send(*addr, raw, *timeout)
	os.Stdout.Write(resp)
	if err != nil {
		logger.Fatal("request failed", zap.String("addr", *addr), zap.Error(err))
	}
}
