package helpers

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"ref":          {},
	"ref_src":      {},
}

// arXiv pdf/abs links with an optional version suffix.
var arxivPath = regexp.MustCompile(`^/(?:abs|pdf)/([^/]+?)(?:v\d+)?(?:\.pdf)?/?$`)

// CanonicalPaperURL normalises a paper link so the same paper found through
// different providers carries the same URL. It lowercases scheme and host,
// drops default ports, fragments and tracking parameters, sorts the rest of
// the query, maps arXiv pdf links onto their abstract page and expands
// "doi:" references. A missing scheme defaults to https.
func CanonicalPaperURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if doi, ok := strings.CutPrefix(strings.ToLower(raw), "doi:"); ok {
		raw = "https://doi.org/" + strings.TrimSpace(raw[len(raw)-len(doi):])
	}

	parsed, err := parseSchemeless(raw)
	if err != nil {
		return "", err
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", errors.New("url missing host")
	}
	if port := parsed.Port(); port != "" && !isDefaultPort(parsed.Scheme, port) {
		host += ":" + port
	}
	parsed.Host = strings.TrimPrefix(host, "www.")
	parsed.Fragment = ""

	p := parsed.Path
	if p == "" {
		p = "/"
	}
	clean := path.Clean("/" + p)
	if clean != "/" && strings.HasSuffix(p, "/") {
		clean += "/"
	}
	parsed.Path = clean
	parsed.RawPath = ""

	if parsed.Host == "arxiv.org" || parsed.Host == "export.arxiv.org" {
		if m := arxivPath.FindStringSubmatch(parsed.Path); m != nil {
			parsed.Scheme = "https"
			parsed.Host = "arxiv.org"
			parsed.Path = "/abs/" + m[1]
		}
	}

	parsed.RawQuery = cleanQuery(parsed.Query())
	return parsed.String(), nil
}

func cleanQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, value := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			if value != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
	}
	return b.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// parseSchemeless parses raw, accepting inputs like example.org/paper and
// //example.org/paper.
func parseSchemeless(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			return url.Parse("https:" + raw)
		}
		return url.Parse("https://" + raw)
	}
	return parsed, nil
}
