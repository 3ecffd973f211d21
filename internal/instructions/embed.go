package instructions

import "embed"

//go:embed templates/*.md
var embeddedFS embed.FS
