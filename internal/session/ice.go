package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

const DefaultSTUNURL = "stun:stun.l.google.com:19302"

func defaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{{URLs: []string{DefaultSTUNURL}}}
}

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
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

// ParseICEServers returns the configured ICE list, or the default public
// STUN server when raw is blank. A malformed value is an ErrConfig; it never
// falls back to the default.
func ParseICEServers(raw string) ([]webrtc.ICEServer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultICEServers(), nil
	}
	var servers []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, fmt.Errorf("%w: ICE_SERVERS_JSON: %v", ErrConfig, err)
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		ice := webrtc.ICEServer{Username: strings.TrimSpace(s.Username)}
		for _, u := range s.URLs {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			ice.URLs = append(ice.URLs, u)
		}
		if s.Credential != "" {
			ice.Credential = s.Credential
		}
		if err := validateICEServer(ice); err != nil {
			return nil, fmt.Errorf("%w: ICE_SERVERS_JSON[%d]: %v", ErrConfig, i, err)
		}
		out = append(out, ice)
	}
	return out, nil
}

func validateICEServer(s webrtc.ICEServer) error {
	if len(s.URLs) == 0 {
		return errors.New("missing urls")
	}
	for _, raw := range s.URLs {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("url %q: %v", raw, err)
		}
		if u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS {
			if s.Username == "" || s.Credential == nil {
				return fmt.Errorf("url %q: turn urls require username and credential", raw)
			}
		}
	}
	return nil
}
