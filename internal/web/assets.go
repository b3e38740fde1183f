// Package web holds the embedded templates and static assets of the login UI.
package web

import "embed"

// Assets contains templates/ and static/
//
//go:embed templates static
var Assets embed.FS
