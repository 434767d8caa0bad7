// Package settings persists the studio's gateway settings. Edits are
// coalesced by a Coordinator and written through a Store at field level, so
// a URL edit and a token edit in quick succession both survive.
package settings

// Settings is the persisted studio settings document.
type Settings struct {
	Gateway *GatewaySettings `json:"gateway,omitempty"`
}

// GatewaySettings is where and how the studio reaches its gateway.
type GatewaySettings struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Patch is a partial update. nil fields are left untouched.
type Patch struct {
	Gateway *GatewayPatch `json:"gateway,omitempty"`
}

// GatewayPatch is a partial update of GatewaySettings.
type GatewayPatch struct {
	URL   *string `json:"url,omitempty"`
	Token *string `json:"token,omitempty"`
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Gateway == nil || (p.Gateway.URL == nil && p.Gateway.Token == nil)
}

// Merge returns p with every field set in next overriding p's.
func (p Patch) Merge(next Patch) Patch {
	out := Patch{}
	if p.Gateway != nil || next.Gateway != nil {
		g := GatewayPatch{}
		if p.Gateway != nil {
			g = *p.Gateway
		}
		if next.Gateway != nil {
			if next.Gateway.URL != nil {
				g.URL = next.Gateway.URL
			}
			if next.Gateway.Token != nil {
				g.Token = next.Gateway.Token
			}
		}
		out.Gateway = &g
	}
	return out
}

// Apply returns s with p applied. s may be nil.
func Apply(s *Settings, p Patch) *Settings {
	out := &Settings{}
	if s != nil && s.Gateway != nil {
		g := *s.Gateway
		out.Gateway = &g
	}
	if p.Gateway != nil {
		if out.Gateway == nil {
			out.Gateway = &GatewaySettings{}
		}
		if p.Gateway.URL != nil {
			out.Gateway.URL = *p.Gateway.URL
		}
		if p.Gateway.Token != nil {
			out.Gateway.Token = *p.Gateway.Token
		}
	}
	return out
}
