package murmur

import (
	"errors"
	"fmt"
)

// ErrValidation indicates a message failed validation.
var ErrValidation = errors.New("validation error")

// ValidateMessage checks that a message's parts are valid for its role.
// OpaqueParts are always accepted: history written by a newer client
// must not fail validation here.
func ValidateMessage(msg Message) error {
	switch msg.Role {
	case RoleUser:
		return validateParts(msg.Parts, msg.Role, allowText|allowImage|allowAudio)
	case RoleAssistant:
		return validateParts(msg.Parts, msg.Role, allowText)
	default:
		return fmt.Errorf("unknown role %q: %w", msg.Role, ErrValidation)
	}
}

type partAllow uint8

const (
	allowText partAllow = 1 << iota
	allowImage
	allowAudio
)

func validateParts(parts []Part, role Role, allowed partAllow) error {
	for _, p := range parts {
		switch p.(type) {
		case TextPart:
			if allowed&allowText == 0 {
				return fmt.Errorf("TextPart not allowed in %s message: %w", role, ErrValidation)
			}
		case ImagePart:
			if allowed&allowImage == 0 {
				return fmt.Errorf("ImagePart not allowed in %s message: %w", role, ErrValidation)
			}
		case AudioPart:
			if allowed&allowAudio == 0 {
				return fmt.Errorf("AudioPart not allowed in %s message: %w", role, ErrValidation)
			}
		case OpaquePart:
			// Forward-compatible content is passed through.
		default:
			return fmt.Errorf("unknown part type %T in %s message: %w", p, role, ErrValidation)
		}
	}
	return nil
}
