package eventjournal

import (
	"fmt"
	"net/url"
	"strconv"
)

// NewSink builds the Sink a single --log-uri value names (spec §6). The
// scheme selects the backend; host/path/query carry backend-specific
// connection details.
func NewSink(uri string) (Sink, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("eventjournal: invalid log-uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "redis":
		return NewRedisSink(u.Host)
	case "memcache", "memcached":
		return NewMemcacheSink(splitHosts(u)...), nil
	case "postgres", "postgresql":
		return NewPostgresSink(uri)
	case "aerospike":
		host, port := u.Hostname(), 3000
		if p := u.Port(); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
		return NewAerospikeSink(host, port)
	case "cassandra":
		keyspace := trimLeadingSlash(u.Path)
		return NewCassandraSink(splitHosts(u), keyspace)
	default:
		return nil, fmt.Errorf("eventjournal: unknown log-uri scheme %q", u.Scheme)
	}
}

// NewSinks builds a MultiSink from every configured --log-uri value.
func NewSinks(uris []string) (*MultiSink, error) {
	sinks := make([]Sink, 0, len(uris))
	for _, uri := range uris {
		s, err := NewSink(uri)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

func splitHosts(u *url.URL) []string {
	if u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func trimLeadingSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}
