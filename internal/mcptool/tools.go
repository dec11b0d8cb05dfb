// Package mcptool exposes the log writer and commit publisher as MCP tools
// so that an agent can record its conversation and publish it.
package mcptool

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/journal"
	"github.com/marcelocantos/txtlog/internal/publish"
)

const defaultTail = 20

// Tools binds the MCP tool handlers to a writer and publisher.
type Tools struct {
	writer    *journal.Writer
	publisher *publish.Publisher
}

// New returns the tool set.
func New(w *journal.Writer, p *publish.Publisher) *Tools {
	return &Tools{writer: w, publisher: p}
}

// Server builds an MCP server with append_log, commit_log and tail_log.
func (t *Tools) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("txtlog", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("append_log",
		mcp.WithDescription("Append a timestamped entry to the text log and return the log path."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Entry text; may span lines.")),
		mcp.WithString("kind", mcp.DefaultString(string(entry.KindInfo)),
			mcp.Description("Entry kind, conventionally IN, OUT or INFO.")),
	), t.appendLog)

	s.AddTool(mcp.NewTool("commit_log",
		mcp.WithDescription("Stage the log file, commit it and optionally push."),
		mcp.WithString("message", mcp.Description("Commit message; defaults to an auto-generated one.")),
		mcp.WithString("path", mcp.Description("File to stage; defaults to the log file.")),
		mcp.WithBoolean("push", mcp.DefaultBool(false), mcp.Description("Push after committing.")),
	), t.commitLog)

	s.AddTool(mcp.NewTool("tail_log",
		mcp.WithDescription("Return the most recent log entries as they appear in the file."),
		mcp.WithNumber("n", mcp.DefaultNumber(defaultTail), mcp.Description("Number of entries.")),
	), t.tailLog)

	return s
}

// Serve runs s over stdio-style streams until ctx is cancelled or in closes.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func (t *Tools) appendLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("kind", string(entry.KindInfo))

	path, err := t.writer.Append(text, entry.Kind(kind))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("append failed: %v", err)), nil
	}
	return mcp.NewToolResultText(path), nil
}

func (t *Tools) commitLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := t.publisher.Commit(ctx,
		req.GetString("message", ""),
		req.GetString("path", ""),
		req.GetBool("push", false))
	if !res.OK {
		return mcp.NewToolResultError(res.Output), nil
	}
	return mcp.NewToolResultText(res.Output), nil
}

func (t *Tools) tailLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := int(req.GetFloat("n", defaultTail))
	if n < 0 {
		return mcp.NewToolResultError("n must be non-negative"), nil
	}
	entries, err := journal.Tail(t.writer.Path(), n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Line())
	}
	return mcp.NewToolResultText(b.String()), nil
}
