// Package registry holds the set of services discovered in a Lando project
// and classifies each one by database kind.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrDiscovery indicates the raw service list could not be parsed.
var ErrDiscovery = errors.New("malformed service list")

// Kind is the database classification tag assigned to a service.
type Kind string

const (
	KindMySQL     Kind = "mysql"
	KindPostgres  Kind = "postgres"
	KindSQLite    Kind = "sqlite"
	KindMongo     Kind = "mongo"
	KindRedis     Kind = "redis"
	KindCassandra Kind = "cassandra"
	KindUnknown   Kind = "unknown"
)

// Descriptor describes one discovered service. Descriptors are immutable
// between refreshes; the registry hands out copies.
type Descriptor struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Type     string   `json:"type"`
	Version  string   `json:"version,omitempty"`
	Host     string   `json:"host,omitempty"`
	Port     string   `json:"port,omitempty"`
	Database string   `json:"database,omitempty"`
	User     string   `json:"user,omitempty"`
	URLs     []string `json:"urls,omitempty"`
}

// IsDatabase reports whether the service belongs in the database view.
func (d Descriptor) IsDatabase() bool {
	return d.Kind != KindUnknown
}

// kindRules is the ordered classification table. Each rule lists the
// substrings probed against the service name and type; the first rule
// that matches wins.
var kindRules = []struct {
	substrings []string
	kind       Kind
}{
	{[]string{"mysql", "mariadb"}, KindMySQL},
	{[]string{"postgres", "postgis"}, KindPostgres},
	{[]string{"sqlite"}, KindSQLite},
	{[]string{"mongo"}, KindMongo},
	{[]string{"redis"}, KindRedis},
	{[]string{"cassandra"}, KindCassandra},
}

// Classify maps a service name and type/image string to a Kind.
func Classify(name, typ string) Kind {
	haystack := strings.ToLower(name) + " " + strings.ToLower(typ)
	for _, rule := range kindRules {
		for _, sub := range rule.substrings {
			if strings.Contains(haystack, sub) {
				return rule.kind
			}
		}
	}
	return KindUnknown
}

// rawService mirrors one entry of `lando info --format json`. The name/image
// aliases cover older payloads that use those field names instead.
type rawService struct {
	Service string   `json:"service"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Image   string   `json:"image"`
	Version string   `json:"version"`
	URLs    []string `json:"urls"`

	InternalConnection *rawConnection `json:"internal_connection"`
	ExternalConnection *rawConnection `json:"external_connection"`
	Creds              *rawCreds      `json:"creds"`
}

type rawConnection struct {
	Host string     `json:"host"`
	Port flexString `json:"port"`
}

// flexString accepts both JSON strings and bare numbers; lando emits ports
// as strings but older payloads carry integers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type rawCreds struct {
	User     string `json:"user"`
	Database string `json:"database"`
}

// Registry is process-wide shared state; all access is serialized here so
// refreshes stay atomic under concurrent readers.
type Registry struct {
	mu          sync.RWMutex
	services    []Descriptor
	refreshedAt time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Refresh replaces the registry contents from a raw JSON service list and
// returns the new descriptors. A well-formed empty list yields an empty
// registry, not an error; input that is not a parseable list fails with a
// wrapped ErrDiscovery and leaves the previous contents in place.
func (r *Registry) Refresh(raw []byte) ([]Descriptor, error) {
	var entries []rawService
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	services := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		name := e.Service
		if name == "" {
			name = e.Name
		}
		typ := e.Type
		if typ == "" {
			typ = e.Image
		}
		d := Descriptor{
			Name:    name,
			Kind:    Classify(name, typ),
			Type:    typ,
			Version: e.Version,
			URLs:    e.URLs,
		}
		if conn := e.InternalConnection; conn != nil {
			d.Host = conn.Host
			d.Port = string(conn.Port)
		}
		if creds := e.Creds; creds != nil {
			d.User = creds.User
			d.Database = creds.Database
		}
		services = append(services, d)
	}
	sort.SliceStable(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	r.mu.Lock()
	r.services = services
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	return services, nil
}

// All returns every discovered service, including non-database ones.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.services))
	copy(out, r.services)
	return out
}

// Databases returns only the services classified as a known database kind.
func (r *Registry) Databases() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, d := range r.services {
		if d.IsDatabase() {
			out = append(out, d)
		}
	}
	return out
}

// Get looks up a service by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.services {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// RefreshedAt reports when the registry was last populated.
func (r *Registry) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}
