// Package assets maps symbolic layer content keys to loadable image URLs.
package assets

import (
	"strings"

	"memeforge/internal/layer"
)

var backgrounds = map[string]string{
	"room":   "backgrounds/room.png",
	"neon":   "backgrounds/neon.png",
	"beach":  "backgrounds/beach.png",
	"office": "backgrounds/office.png",
	"fire":   "backgrounds/fire.png",
	"meme":   "backgrounds/meme.png",
}

var bodies = map[string]string{
	"lasers":      "bodies/lasers.png",
	"gamer":       "bodies/gamer.png",
	"otaku":       "bodies/otaku.png",
	"three_d":     "bodies/three_d.png",
	"classic":     "bodies/classic.png",
	"cartoon":     "bodies/cartoon.png",
	"pop_body":    "bodies/pop.png",
	"closed_body": "bodies/closed.png",
	"noob_body":   "bodies/noob.png",
	"pro_body":    "bodies/pro.png",
}

var heads = map[string]string{
	"popcat":      "heads/closed.png",
	"megapopcat":  "heads/pop.png",
	"laser":       "heads/laser.png",
	"pop_head":    "heads/pop.png",
	"closed_head": "heads/closed.png",
	"pro_head":    "heads/pop.png",
}

var props = map[string]string{
	"glasses":       "props/glasses.png",
	"chain":         "props/chain.png",
	"flag":          "props/flag.png",
	"confetti":      "props/confetti.png",
	"crown":         "props/crown.png",
	"headphones":    "props/headphones.png",
	"diamond_hands": "props/diamond_hands.png",
	"rocket":        "props/rocket.png",
	"controller":    "props/controller.png",
	"coin":          "props/coin.png",
	"trophy":        "props/trophy.png",
}

// Resolver resolves a layer's content key into an image URL. Unknown keys are
// treated as literal URLs or data URLs so user-uploaded content keeps working.
type Resolver struct {
	baseURL string
}

func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (r *Resolver) URL(kind layer.Kind, content string) string {
	if content == "" {
		return ""
	}

	var path string
	var ok bool
	switch kind {
	case layer.KindBackground:
		if path, ok = backgrounds[content]; !ok {
			// Backgrounds always resolve so the canvas never loses its base.
			if isDirectURL(content) {
				return content
			}
			path = backgrounds["meme"]
		}
	case layer.KindBody:
		path, ok = bodies[content]
	case layer.KindHead:
		path, ok = heads[content]
	case layer.KindProp:
		path, ok = props[content]
	default:
		return content
	}

	if path == "" || (!ok && kind != layer.KindBackground) {
		return content
	}
	if r.baseURL == "" {
		return path
	}
	return r.baseURL + "/" + path
}

func isDirectURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:image/")
}
