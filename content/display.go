package content

import "github.com/fwojciec/murmur"

// Kind classifies a part for rendering.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindAudio
)

// Display is a render-ready view of a media part.
type Display struct {
	Kind   Kind
	Source string
}

// DecodeForDisplay maps a part to its displayable source. It is total:
// unrecognized parts map to KindUnsupported rather than failing, so
// history rendering never breaks on forward-incompatible content.
// Text parts are not media and also map to KindUnsupported; callers
// render their text directly.
func DecodeForDisplay(p murmur.Part) Display {
	switch v := p.(type) {
	case murmur.ImagePart:
		return Display{Kind: KindImage, Source: v.URL}
	case murmur.AudioPart:
		return Display{Kind: KindAudio, Source: "data:audio/" + v.Format + ";base64," + v.Data}
	default:
		return Display{Kind: KindUnsupported}
	}
}
