package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// HeaderName carries the storefront session as an RFC 8941 dictionary:
//
//	Storefront-Session: sid="3f0c...", token="abc", client="1.4.0"
//
// All members are optional strings. Unknown members are ignored.
const HeaderName = "Storefront-Session"

// Header is the parsed Storefront-Session header.
type Header struct {
	SessionID string
	Token     string
	Client    string
}

// ParseHeader parses a Storefront-Session header value.
func ParseHeader(value string) (Header, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Header{}, errors.New("empty Storefront-Session header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{value})
	if err != nil {
		return Header{}, fmt.Errorf("invalid Storefront-Session header: %w", err)
	}

	var h Header
	for key, dst := range map[string]*string{"sid": &h.SessionID, "token": &h.Token, "client": &h.Client} {
		s, err := stringMember(dict, key)
		if err != nil {
			return Header{}, err
		}
		*dst = s
	}
	return h, nil
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", nil
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	switch v := item.Value.(type) {
	case string:
		return v, nil
	case httpsfv.Token:
		return string(v), nil
	default:
		return "", fmt.Errorf("%s value must be a string", key)
	}
}

// FormatHeader serializes the session id for the response header. The
// token is never echoed.
func FormatHeader(sessionID string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("sid", httpsfv.NewItem(sessionID))
	return httpsfv.Marshal(dict)
}
