// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the converted vault for LLM inspection via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/runeport/internal/apperr"
	"github.com/starford/runeport/internal/catalog"
	"github.com/starford/runeport/internal/storage"
)

// Server wraps the MCP server with Runeport tools.
type Server struct {
	mcp   *server.MCPServer
	vault storage.Provider
	cat   catalog.Catalog
}

// New creates a new MCP server with all tools registered. vault is the
// destination tree holding converted Markdown.
func New(vault storage.Provider, cat catalog.Catalog) *Server {
	s := &Server{vault: vault, cat: cat}

	s.mcp = server.NewMCPServer(
		"Runeport",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through converted documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full converted Markdown of one document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. Locations/lair.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("lookup_reference",
		mcp.WithDescription("Resolve an export identifier or title to its converted document, "+
			"the same way cross-references were resolved during conversion."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Document identifier or title")),
	), s.lookupReference)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List converted documents, optionally filtered by template category."),
		mcp.WithString("template", mcp.Description("Optional template filter (empty for all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("conversion_report",
		mcp.WithDescription("Report references whose targets were absent from the export."),
	), s.conversionReport)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.cat.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.vault.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) lookupReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	row, err := s.cat.GetByID(target)
	if errors.Is(err, apperr.ErrNotFound) {
		row, err = s.cat.GetByTitle(target)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("unresolved: %q is not in the export", target)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(map[string]string{
		"id":        row.ID,
		"title":     row.Title,
		"dest_path": row.DestPath,
		"wiki_link": "[[" + strings.TrimSuffix(row.DestPath, ".md") + "|" + row.Title + "]]",
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template := ""
	if t, err := req.RequireString("template"); err == nil {
		template = t
	}

	rows, _, err := s.cat.ListDocuments(500, 0, template, "dest_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", row.ID, row.Title, row.DestPath))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no documents converted yet"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) conversionReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.cat.Unresolved()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("all references resolved"), nil
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
