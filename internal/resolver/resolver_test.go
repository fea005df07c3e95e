package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

type fakeDirectory struct {
	records []ComputerRecord
	err     error
	queried bool
}

func (f *fakeDirectory) SearchComputers(ctx context.Context) ([]ComputerRecord, error) {
	f.queried = true
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// TestResolveExplicitPassthrough verifies an explicit list is returned
// unchanged, order preserved, without touching the directory
func TestResolveExplicitPassthrough(t *testing.T) {
	dir := &fakeDirectory{
		records: []ComputerRecord{{Name: "CORP-PC9", DNSHostName: "x", Enabled: true}},
	}
	r := &Resolver{Dir: dir, Domain: "CORP.example.com", Logger: zap.NewNop()}

	got, err := r.Resolve(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Resolve() = %v, want [a b]", got)
	}
	if dir.queried {
		t.Error("Resolve() queried the directory despite an explicit list")
	}
}

// TestResolveDiscovery tests the directory filter: enabled, named, and
// matching the domain-derived prefix, sorted ascending
func TestResolveDiscovery(t *testing.T) {
	records := []ComputerRecord{
		{Name: "CORP-PC1", DNSHostName: "x", Enabled: true},
		{Name: "LAB-PC2", DNSHostName: "y", Enabled: true},
		{Name: "CORP-PC3", DNSHostName: "z", Enabled: false},
	}

	tests := []struct {
		name    string
		domain  string
		records []ComputerRecord
		want    []string
	}{
		{
			name:    "no names match the prefix",
			domain:  "CONTOSO.local",
			records: records,
			want:    nil,
		},
		{
			name:    "disabled machine excluded",
			domain:  "CORP.example.com",
			records: records,
			want:    []string{"CORP-PC1"},
		},
		{
			name:   "prefix match is case-sensitive",
			domain: "CORP.example.com",
			records: []ComputerRecord{
				{Name: "corp-pc1", DNSHostName: "x", Enabled: true},
				{Name: "CORP-PC2", DNSHostName: "y", Enabled: true},
			},
			want: []string{"CORP-PC2"},
		},
		{
			name:   "missing network name excluded",
			domain: "CORP.example.com",
			records: []ComputerRecord{
				{Name: "CORP-PC1", DNSHostName: "", Enabled: true},
				{Name: "CORP-PC2", DNSHostName: "y", Enabled: true},
			},
			want: []string{"CORP-PC2"},
		},
		{
			name:   "result sorted ascending",
			domain: "CORP.example.com",
			records: []ComputerRecord{
				{Name: "CORP-PC9", DNSHostName: "a", Enabled: true},
				{Name: "CORP-PC1", DNSHostName: "b", Enabled: true},
				{Name: "CORP-PC5", DNSHostName: "c", Enabled: true},
			},
			want: []string{"CORP-PC1", "CORP-PC5", "CORP-PC9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{
				Dir:    &fakeDirectory{records: tt.records},
				Domain: tt.domain,
				Logger: zap.NewNop(),
			}

			got, err := r.Resolve(context.Background(), nil)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestResolveDiscoveryFailure verifies a directory failure is fatal and
// typed as a DiscoveryError
func TestResolveDiscoveryFailure(t *testing.T) {
	r := &Resolver{
		Dir:    &fakeDirectory{err: errors.New("ldap unreachable")},
		Domain: "CORP.example.com",
		Logger: zap.NewNop(),
	}

	_, err := r.Resolve(context.Background(), nil)
	if err == nil {
		t.Fatal("Resolve() succeeded despite directory failure")
	}

	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Errorf("Resolve() error type %T, want *DiscoveryError", err)
	}
}

// TestResolveNoDirectory verifies discovery without a configured directory
// fails rather than silently returning nothing
func TestResolveNoDirectory(t *testing.T) {
	r := &Resolver{Domain: "CORP.example.com", Logger: zap.NewNop()}

	_, err := r.Resolve(context.Background(), nil)
	if err == nil {
		t.Fatal("Resolve() succeeded with no directory configured")
	}
}

// TestNamePrefix tests prefix derivation from the domain name
func TestNamePrefix(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		want   string
	}{
		{name: "normal domain", domain: "CONTOSO.local", want: "CONT"},
		{name: "exactly four chars", domain: "CORP", want: "CORP"},
		{name: "shorter than four", domain: "AB", want: "AB"},
		{name: "empty", domain: "", want: ""},
		{name: "case preserved", domain: "corp.example.com", want: "corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NamePrefix(tt.domain); got != tt.want {
				t.Errorf("NamePrefix(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}
