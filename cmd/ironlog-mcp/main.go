// Command ironlog-mcp serves the ironlog MCP tools over stdio, reading data
// from a remote ironlog server. Run it on a tailnet machine so the server
// can identify the caller.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/claude/ironlog/internal/logging"
	ironmcp "github.com/claude/ironlog/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	baseURL := flag.String("url", "http://ironlog", "base URL of the ironlog server")
	logFile := flag.String("log-file", "", "rotating log file; logs go to stderr without one")
	flag.Parse()

	// stdout carries the protocol.
	var log *slog.Logger
	var closer io.Closer = io.NopCloser(nil)
	if *logFile != "" {
		log, closer = logging.New(logging.Params{Level: "info", File: *logFile, MaxSizeMB: 10})
	} else {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	defer closer.Close()

	s := ironmcp.New(ironmcp.NewHTTPClient(*baseURL), Version, log)
	log.Info("serving MCP over stdio", "url", *baseURL)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "ironlog-mcp: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}
