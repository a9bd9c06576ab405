package model

// Lyrics holds the scraped text of one track's detail page.
type Lyrics struct {
	Title  string
	Artist string
	Lines  []string
}

// InstrumentalPlaceholder is served verbatim when a track page carries no
// lyric lines. It is the provider's own wording for instrumental tracks.
const InstrumentalPlaceholder = "纯音乐，请欣赏~"
