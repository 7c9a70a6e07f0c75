package cli

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildLink assembles the share link. The key travels in the URL
// fragment: browsers and HTTP clients never send fragments over the
// wire, so the server cannot see it. Passphrase-protected secrets have
// no fragment at all.
func BuildLink(serverAddr, shortID, exportedKey string) string {
	link := strings.TrimRight(serverAddr, "/") + "/s/" + shortID
	if exportedKey != "" {
		link += "#" + exportedKey
	}
	return link
}

// ParseLink extracts the short id and the optional key fragment from a
// share link. A bare short id (no scheme, no slash) is accepted too.
func ParseLink(link string) (shortID, exportedKey string, err error) {
	if !strings.ContainsAny(link, "/#") {
		return link, "", nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("invalid share link: %w", err)
	}

	path := strings.TrimSuffix(u.Path, "/")
	i := strings.LastIndex(path, "/")
	shortID = path[i+1:]
	if shortID == "" {
		return "", "", fmt.Errorf("invalid share link: no identifier")
	}
	return shortID, u.Fragment, nil
}
