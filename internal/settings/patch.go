package settings

import "github.com/nhle/cfish-notify/internal/model"

// Patch is a partial settings update. Nil fields and absent category
// keys leave the current value alone.
type Patch struct {
	Types        map[model.NotificationType]bool
	Sound        *bool
	EmailEnabled *bool
	SMSEnabled   *bool
}

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// ParsePatch builds a Patch from loosely typed input such as decoded
// JSON. Unknown keys and values of the wrong type are ignored. Category
// flags are accepted nested under "types" and flat at the top level.
// "pushEnabled" is ignored: the push flag only changes together with
// the subscription.
func ParsePatch(in map[string]any) Patch {
	var p Patch

	setType := func(key string, v any) {
		t := model.NotificationType(key)
		b, ok := v.(bool)
		if !ok || !t.IsKnown() {
			return
		}
		if p.Types == nil {
			p.Types = make(map[model.NotificationType]bool)
		}
		p.Types[t] = b
	}

	for k, v := range in {
		switch k {
		case "types":
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			for tk, tv := range nested {
				setType(tk, tv)
			}
		case "sound":
			if b, ok := v.(bool); ok {
				p.Sound = Bool(b)
			}
		case "emailEnabled":
			if b, ok := v.(bool); ok {
				p.EmailEnabled = Bool(b)
			}
		case "smsEnabled":
			if b, ok := v.(bool); ok {
				p.SMSEnabled = Bool(b)
			}
		default:
			setType(k, v)
		}
	}
	return p
}

// apply merges p into s.
func (p Patch) apply(s *model.Settings) {
	for t, on := range p.Types {
		if t.IsKnown() {
			s.Types[t] = on
		}
	}
	if p.Sound != nil {
		s.Sound = *p.Sound
	}
	if p.EmailEnabled != nil {
		s.EmailEnabled = *p.EmailEnabled
	}
	if p.SMSEnabled != nil {
		s.SMSEnabled = *p.SMSEnabled
	}
}
