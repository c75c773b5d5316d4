package turn

import (
	"encoding/json"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// IsRelayURL reports whether raw is a well-formed turn: or turns: URI.
func IsRelayURL(raw string) bool {
	u, err := stun.ParseURI(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS
}

// upstreamServer is one entry of the provider's ice_servers list. Providers
// send `urls` as a string or an array and sometimes only the legacy `url`.
type upstreamServer struct {
	URL        string        `json:"url,omitempty"`
	URLs       stringOrSlice `json:"urls,omitempty"`
	Username   string        `json:"username,omitempty"`
	Credential string        `json:"credential,omitempty"`
}

type stringOrSlice []string

func (s *stringOrSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (u upstreamServer) urls() []string {
	if len(u.URLs) > 0 {
		return u.URLs
	}
	if u.URL != "" {
		return []string{u.URL}
	}
	return nil
}

// FilterRelay keeps only turn:/turns: URLs. Entries left without any URL are
// dropped; credentials ride along unchanged.
func FilterRelay(servers []upstreamServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		var relay []string
		for _, raw := range s.urls() {
			if IsRelayURL(raw) {
				relay = append(relay, strings.TrimSpace(raw))
			}
		}
		if len(relay) == 0 {
			continue
		}
		ice := webrtc.ICEServer{URLs: relay, Username: s.Username}
		if s.Credential != "" {
			ice.Credential = s.Credential
		}
		out = append(out, ice)
	}
	return out
}
