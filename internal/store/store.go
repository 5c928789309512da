// Package store keeps a mailbox and calendar in a local SQLite database.
// It is the default backing store of the server and the one the tests
// run against.
package store

import "github.com/xmubeta/outlook-mcp-server/internal/source"

var (
	_ source.Gateway = (*SQLiteStore)(nil)
	_ source.Conn    = (*session)(nil)
	_ source.Folder  = (*Folder)(nil)
)
