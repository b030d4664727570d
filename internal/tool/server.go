// SPDX-License-Identifier: Apache-2.0

// Package tool exposes claim scrubbing as Model Context Protocol tools.
package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medbill/claimscrub/internal/suggest"
)

// NewServer registers every tool on a new MCP server.
func NewServer(svc *suggest.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "claimscrub", Version: version}, nil)

	tools := New(svc)
	mcp.AddTool(server, MetadataSuggestClaimEdits, tools.SuggestClaimEdits)
	mcp.AddTool(server, MetadataRetrieveScrubContext, tools.RetrieveScrubContext)
	mcp.AddTool(server, MetadataCheckCorpusSeed, CheckCorpusSeed)
	return server
}
