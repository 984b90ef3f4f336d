// Package mcp exposes contentfactory as an MCP server.
//
// Tools are registered with the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and call the controller, learner and retrieval service directly:
//
//   - generate_package runs one content job
//   - record_metrics scores a metric submission and may promote the artifact
//   - retrieve_context returns records similar to a text
//   - check_duplicate compares a product input with past campaigns
package mcp
