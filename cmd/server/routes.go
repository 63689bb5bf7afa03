package main

import (
	"net/http"

	"github.com/sectorfolio/sectorfolio/internal/mcp"
)

// muxWithMCP mounts the MCP endpoint next to the API.
func muxWithMCP(api http.Handler, m *mcp.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", m)
	mux.Handle("/", api)
	return mux
}
