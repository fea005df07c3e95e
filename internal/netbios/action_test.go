package netbios

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeStore struct {
	ifaces  []RawInterface
	writes  map[string]Setting
	listErr error
	setErr  error
}

func (f *fakeStore) List() ([]RawInterface, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ifaces, nil
}

func (f *fakeStore) SetOption(key string, value Setting) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.writes == nil {
		f.writes = make(map[string]Setting)
	}
	f.writes[key] = value
	return nil
}

type fakeAdapters struct {
	adapters []Adapter
	err      error
}

func (f *fakeAdapters) List() ([]Adapter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.adapters, nil
}

type fakeAudit struct {
	entries []string
	err     error
}

func (f *fakeAudit) Info(eventID uint32, msg string) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, msg)
	return nil
}

const (
	uuidA = "A9FD5C7B-2C89-4A3F-AE24-F1B70F2C1D36"
	uuidB = "0f42b9d1-86ea-4c6a-9d05-31c5ec0aa001"
)

func newAction(store *fakeStore, adapters *fakeAdapters, audit *fakeAudit) *Action {
	return &Action{
		Host:       "TESTHOST",
		Interfaces: store,
		Adapters:   adapters,
		Audit:      audit,
		Logger:     zap.NewNop(),
	}
}

// TestExecuteForcesDisabled verifies every interface with a NetbiosOptions
// value ends up force-disabled and merged with its adapter metadata
func TestExecuteForcesDisabled(t *testing.T) {
	store := &fakeStore{
		ifaces: []RawInterface{
			{Key: "Tcpip_{" + uuidA + "}", Setting: SettingDefault, HasSetting: true},
			{Key: "Tcpip_{" + uuidB + "}", Setting: SettingEnabled, HasSetting: true},
		},
	}
	adapters := &fakeAdapters{
		adapters: []Adapter{
			{InstanceID: "{" + uuidA + "}", DriverDesc: "Intel(R) Ethernet I219-LM", Provider: "Intel"},
		},
	}
	audit := &fakeAudit{}

	res := newAction(store, adapters, audit).Execute(context.Background())

	if !res.OK {
		t.Fatalf("Execute() failed: %s", res.Err)
	}
	if len(res.Changed) != 2 {
		t.Fatalf("Execute() changed %d interfaces, want 2", len(res.Changed))
	}

	for key, val := range store.writes {
		if val != SettingDisabled {
			t.Errorf("wrote %d to %s, want %d", val, key, SettingDisabled)
		}
	}
	if len(store.writes) != 2 {
		t.Errorf("wrote %d keys, want 2", len(store.writes))
	}

	// First record carries the matched metadata, second stays bare
	if res.Changed[0].DisplayName != "Intel(R) Ethernet I219-LM" {
		t.Errorf("Changed[0].DisplayName = %q, want adapter driver description", res.Changed[0].DisplayName)
	}
	if res.Changed[0].Previous != SettingDefault {
		t.Errorf("Changed[0].Previous = %d, want %d", res.Changed[0].Previous, SettingDefault)
	}
	if res.Changed[1].DisplayName != "" {
		t.Errorf("Changed[1].DisplayName = %q, want empty (no metadata match)", res.Changed[1].DisplayName)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("emitted %d audit entries, want 2", len(audit.entries))
	}
	if !strings.Contains(audit.entries[0], "Intel(R) Ethernet I219-LM") {
		t.Errorf("audit entry %q does not name the adapter", audit.entries[0])
	}
	if !strings.HasPrefix(audit.entries[0], AuditPrefix) {
		t.Errorf("audit entry %q missing fixed prefix", audit.entries[0])
	}
}

// TestExecuteSkipsWithoutSetting verifies interfaces lacking NetbiosOptions
// are never written, never audited, never listed
func TestExecuteSkipsWithoutSetting(t *testing.T) {
	store := &fakeStore{
		ifaces: []RawInterface{
			{Key: "Tcpip_{" + uuidA + "}"}, // no NetbiosOptions value
			{Key: "Tcpip_{" + uuidB + "}", Setting: SettingDefault, HasSetting: true},
		},
	}
	audit := &fakeAudit{}

	res := newAction(store, &fakeAdapters{}, audit).Execute(context.Background())

	if !res.OK {
		t.Fatalf("Execute() failed: %s", res.Err)
	}
	if len(res.Changed) != 1 {
		t.Fatalf("Execute() changed %d interfaces, want 1", len(res.Changed))
	}
	if _, written := store.writes["Tcpip_{"+uuidA+"}"]; written {
		t.Error("interface without NetbiosOptions was written")
	}
	if len(audit.entries) != 1 {
		t.Errorf("emitted %d audit entries, want 1", len(audit.entries))
	}
}

// TestExecuteParseError verifies a subkey without a UUID fails the whole
// action for this host
func TestExecuteParseError(t *testing.T) {
	store := &fakeStore{
		ifaces: []RawInterface{
			{Key: "Tcpip_{" + uuidA + "}", Setting: SettingDefault, HasSetting: true},
			{Key: "Tcpip_garbage", Setting: SettingDefault, HasSetting: true},
		},
	}

	res := newAction(store, &fakeAdapters{}, &fakeAudit{}).Execute(context.Background())

	if res.OK {
		t.Fatal("Execute() succeeded despite unparseable interface key")
	}
	if !strings.Contains(res.Err, "Tcpip_garbage") {
		t.Errorf("Execute() error %q does not name the bad key", res.Err)
	}
	// Work completed before the failure may remain as a partial result
	if len(res.Changed) > 1 {
		t.Errorf("Execute() changed %d interfaces, want at most 1", len(res.Changed))
	}
}

// TestExecuteAdapterEnumPolicy verifies the explicit on-error policy for
// the adapter metadata side channel
func TestExecuteAdapterEnumPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		wantOK bool
	}{
		{name: "best effort continues with empty metadata", policy: PolicyBestEffort, wantOK: true},
		{name: "fail policy aborts the action", policy: PolicyFail, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				ifaces: []RawInterface{
					{Key: "Tcpip_{" + uuidA + "}", Setting: SettingEnabled, HasSetting: true},
				},
			}
			a := newAction(store, &fakeAdapters{err: errors.New("access denied")}, &fakeAudit{})
			a.MetadataPolicy = tt.policy

			res := a.Execute(context.Background())

			if res.OK != tt.wantOK {
				t.Fatalf("Execute() OK = %v, want %v (err: %s)", res.OK, tt.wantOK, res.Err)
			}
			if tt.wantOK {
				if len(res.Changed) != 1 {
					t.Fatalf("Execute() changed %d interfaces, want 1", len(res.Changed))
				}
				if res.Changed[0].DisplayName != "" {
					t.Errorf("DisplayName = %q, want empty without metadata", res.Changed[0].DisplayName)
				}
			}
		})
	}
}

// TestExecuteAuditPolicy verifies a failed audit write does not discount an
// applied change under the default policy
func TestExecuteAuditPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		wantOK bool
	}{
		{name: "best effort keeps the change", policy: PolicyBestEffort, wantOK: true},
		{name: "fail policy aborts the action", policy: PolicyFail, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				ifaces: []RawInterface{
					{Key: "Tcpip_{" + uuidA + "}", Setting: SettingEnabled, HasSetting: true},
				},
			}
			a := newAction(store, &fakeAdapters{}, &fakeAudit{err: errors.New("log full")})
			a.AuditPolicy = tt.policy

			res := a.Execute(context.Background())

			if res.OK != tt.wantOK {
				t.Fatalf("Execute() OK = %v, want %v (err: %s)", res.OK, tt.wantOK, res.Err)
			}
			// The registry mutation comes before the audit write either way
			if store.writes["Tcpip_{"+uuidA+"}"] != SettingDisabled {
				t.Error("registry mutation missing despite audit failure")
			}
			if tt.wantOK && len(res.Changed) != 1 {
				t.Errorf("Execute() changed %d interfaces, want 1", len(res.Changed))
			}
		})
	}
}

// TestExecuteWriteFailure verifies registry write denial fails the action
func TestExecuteWriteFailure(t *testing.T) {
	store := &fakeStore{
		ifaces: []RawInterface{
			{Key: "Tcpip_{" + uuidA + "}", Setting: SettingDefault, HasSetting: true},
		},
		setErr: errors.New("access is denied"),
	}

	res := newAction(store, &fakeAdapters{}, &fakeAudit{}).Execute(context.Background())

	if res.OK {
		t.Fatal("Execute() succeeded despite registry write failure")
	}
	if len(res.Changed) != 0 {
		t.Errorf("Execute() changed %d interfaces, want 0", len(res.Changed))
	}
}

// TestExecuteRerunStillAudits verifies a second pass over already-disabled
// interfaces writes and audits again: enforcement is overwrite-idempotent,
// not suppress-on-no-change
func TestExecuteRerunStillAudits(t *testing.T) {
	audit := &fakeAudit{}

	for run := 0; run < 2; run++ {
		setting := SettingEnabled
		if run == 1 {
			setting = SettingDisabled // state left by the first run
		}
		store := &fakeStore{
			ifaces: []RawInterface{
				{Key: "Tcpip_{" + uuidA + "}", Setting: setting, HasSetting: true},
			},
		}

		res := newAction(store, &fakeAdapters{}, audit).Execute(context.Background())

		if !res.OK {
			t.Fatalf("run %d failed: %s", run, res.Err)
		}
		if store.writes["Tcpip_{"+uuidA+"}"] != SettingDisabled {
			t.Errorf("run %d: final setting = %d, want %d", run, store.writes["Tcpip_{"+uuidA+"}"], SettingDisabled)
		}
	}

	if len(audit.entries) != 2 {
		t.Errorf("two runs emitted %d audit entries, want 2", len(audit.entries))
	}
}

// TestExtractInterfaceID tests UUID extraction from registry subkey names
func TestExtractInterfaceID(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{
			name: "standard Tcpip key",
			key:  "Tcpip_{" + uuidA + "}",
			want: uuidA,
		},
		{
			name: "lowercase uuid",
			key:  "Tcpip_{" + uuidB + "}",
			want: uuidB,
		},
		{
			name: "bare uuid without braces",
			key:  uuidA,
			want: uuidA,
		},
		{
			name:    "no uuid at all",
			key:     "Tcpip_garbage",
			wantErr: true,
		},
		{
			name:    "truncated uuid",
			key:     "Tcpip_{A9FD5C7B-2C89-4A3F}",
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractInterfaceID(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractInterfaceID(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("extractInterfaceID(%q) error type %T, want *ParseError", tt.key, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("extractInterfaceID(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// TestMatchAdapter tests the case-insensitive containment join
func TestMatchAdapter(t *testing.T) {
	adapters := []Adapter{
		{InstanceID: "{" + strings.ToUpper(uuidB) + "}", DriverDesc: "Realtek PCIe GbE"},
		{InstanceID: "{" + uuidA + "}", DriverDesc: "Intel(R) Ethernet"},
	}

	tests := []struct {
		name      string
		id        string
		wantDesc  string
		wantMatch bool
	}{
		{name: "exact case", id: uuidA, wantDesc: "Intel(R) Ethernet", wantMatch: true},
		{name: "case differs", id: uuidB, wantDesc: "Realtek PCIe GbE", wantMatch: true},
		{name: "unknown id", id: "00000000-0000-0000-0000-000000000000", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ad, ok := matchAdapter(adapters, tt.id)
			if ok != tt.wantMatch {
				t.Fatalf("matchAdapter() match = %v, want %v", ok, tt.wantMatch)
			}
			if ok && ad.DriverDesc != tt.wantDesc {
				t.Errorf("matchAdapter() = %q, want %q", ad.DriverDesc, tt.wantDesc)
			}
		})
	}
}
