// Package appfs embeds the files the binaries need at runtime:
// SQL migrations, email templates and static assets.
package appfs

import "embed"

// `all:` keeps the `_base.*` layouts, which a plain directory pattern skips.
//
//go:embed migrations/*.sql all:templates assets
var FS embed.FS
