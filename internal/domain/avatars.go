package domain

// Avatars is the catalog a player picks a profile picture from.
var Avatars = []string{
	"😀", "😎", "🤓", "🥳", "🤩", "😇",
	"🤗", "🥰", "😊", "🙃", "😏", "🤪",
	"🤡", "👻", "👽", "🤖", "💩", "🦄",
	"🐶", "🐱", "🐼", "🦊", "🐸", "🦁",
	"🌟", "⚡", "🔥", "💎", "🎭", "🎪",
}

// IsAvatar reports whether a is in the catalog.
func IsAvatar(a string) bool {
	for _, known := range Avatars {
		if a == known {
			return true
		}
	}
	return false
}
