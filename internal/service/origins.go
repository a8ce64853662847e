package service

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Option configures a PostService.
type Option func(*PostService)

// WithObjectOrigins sets the URL prefixes under which stored objects live,
// e.g. "https://res.cloudinary.com/demo/". Committed post URLs must fall under
// one of them and downloads only fetch from them. Entries that do not parse
// as absolute http(s) URLs are ignored.
func WithObjectOrigins(origins ...string) Option {
	return func(s *PostService) {
		for _, raw := range origins {
			s.origins.add(raw)
		}
	}
}

type origin struct {
	scheme string
	host   string
	prefix string
}

type objectOrigins struct {
	list []origin
}

func (o *objectOrigins) add(raw string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return
	}
	prefix := u.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	o.list = append(o.list, origin{scheme: u.Scheme, host: strings.ToLower(u.Host), prefix: prefix})
}

// trusted reports whether u points under a configured origin. With no origins
// configured nothing is trusted.
func (o *objectOrigins) trusted(u *url.URL) bool {
	if u == nil || u.User != nil || u.Opaque != "" {
		return false
	}
	p := u.EscapedPath()
	if strings.Contains(p, "/../") || strings.HasSuffix(p, "/..") {
		return false
	}
	for _, org := range o.list {
		if u.Scheme == org.scheme && strings.ToLower(u.Host) == org.host && strings.HasPrefix(u.Path, org.prefix) {
			return true
		}
	}
	return false
}

var errForeignRedirect = errors.New("redirect outside object store")

func (o *objectOrigins) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if !o.trusted(req.URL) {
		return errForeignRedirect
	}
	return nil
}
