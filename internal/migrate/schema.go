package migrate

import "embed"

// Files holds the service schema migrations (sql/) and seeds (seeds/).
//
//go:embed sql/*.sql seeds/*.sql
var Files embed.FS
