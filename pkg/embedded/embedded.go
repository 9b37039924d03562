// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains the web front end served at /:
//   - web/index.html - applicant form with live what-if scoring over /api/score/live
//
//go:embed web
var Files embed.FS
