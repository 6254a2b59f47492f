// Package web holds the front-end of the moderation panel.
package web

import "embed"

// Content holds index.html
//
//go:embed index.html
var Content embed.FS
