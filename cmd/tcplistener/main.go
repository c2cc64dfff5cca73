package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhdewitt/formserver/internal/config"
	"github.com/nhdewitt/formserver/internal/logging"
	"github.com/nhdewitt/formserver/internal/request"
)

// printRequest writes everything the decoder extracted from req.
func printRequest(w io.Writer, req *request.Request) {
	fmt.Fprintln(w, "Request line:")
	fmt.Fprintf(w, "- Method: %s\n", req.RequestLine.Method)
	fmt.Fprintf(w, "- Target: %s\n", req.RequestLine.RequestTarget)
	fmt.Fprintf(w, "- Version: %s\n", req.RequestLine.HttpVersion)
	fmt.Fprintf(w, "- Path: %s\n", req.Path)

	fmt.Fprintln(w, "Headers:")
	for _, k := range req.Headers.Keys() {
		fmt.Fprintf(w, "- %s: %s\n", k, req.Headers[k])
	}

	if req.HasQueryParams() {
		fmt.Fprintln(w, "Query:")
		printValues(w, req.QueryParams)
	}
	if len(req.PostParams) > 0 {
		fmt.Fprintln(w, "Form:")
		printValues(w, req.PostParams)
	}
	for i, d := range req.MultipartData {
		fmt.Fprintf(w, "Part %d:\n%s\n", i, d)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(w, "Body: %d bytes\n", len(req.Body))
	}
}

func printValues(w io.Writer, values map[string][]string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range values[name] {
			fmt.Fprintf(w, "- %s = %s\n", name, v)
		}
	}
}

func main() {
	fs := pflag.NewFlagSet("tcplistener", pflag.ExitOnError)
	port := fs.Int("port", 42069, "TCP port to listen on")
	maxHeader := fs.Int("max-header-bytes", request.DefaultMaxHeaderBytes, "request head limit")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.New(config.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		logger.Fatal("error listening", zap.Error(err))
	}
	defer listener.Close()

	decoder := request.Decoder{MaxHeaderBytes: *maxHeader}
	logger.Info("listening for TCP traffic", zap.Stringer("addr", listener.Addr()))
	for {
		c, err := listener.Accept()
		if err != nil {
			logger.Fatal("error accepting connection", zap.Error(err))
		}
		logger.Info("connection accepted", zap.Stringer("remote", c.RemoteAddr()))

		req, err := decoder.Decode(c)
		if err != nil {
			logger.Warn("error parsing request", zap.Error(err))
		} else {
			printRequest(os.Stdout, req)
		}
		c.Close()
		logger.Info("connection closed", zap.Stringer("remote", c.RemoteAddr()))
	}
}
