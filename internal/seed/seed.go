// Package seed embeds the built-in sample deck so a fresh install has
// questions to review before any source is added.
package seed

import (
	"embed"
	"io/fs"
)

// SourcePath is the source path under which the built-in deck is registered.
const SourcePath = "builtin:security-plus"

//go:embed decks/*.md
var decks embed.FS

// FS returns the built-in decks, rooted at the deck directory.
func FS() fs.FS {
	sub, err := fs.Sub(decks, "decks")
	if err != nil {
		panic(err) // The embed pattern guarantees the directory exists.
	}
	return sub
}
