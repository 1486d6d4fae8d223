package zerofabric

import "testing"

func TestNewServiceNameValidatesWorks(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"valid/service-name.1", false},
		{"", true},
		{"has space", true},
		{"has\x00nul", true},
	}
	for _, c := range cases {
		_, err := NewServiceName(c.name)
		if (err != nil) != c.wantErr {
			t.Errorf("NewServiceName(%q): err=%v, wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestServiceNameUUIDIsDeterministicWorks(t *testing.T) {
	a, err := NewServiceName("fleet/telemetry")
	if err != nil {
		t.Fatalf("NewServiceName: %v", err)
	}
	b, err := NewServiceName("fleet/telemetry")
	if err != nil {
		t.Fatalf("NewServiceName: %v", err)
	}
	if a.UUID() != b.UUID() {
		t.Errorf("expected identical UUIDs for identical names")
	}

	other, err := NewServiceName("fleet/commands")
	if err != nil {
		t.Fatalf("NewServiceName: %v", err)
	}
	if a.UUID() == other.UUID() {
		t.Errorf("expected different UUIDs for different names")
	}
}

func TestServiceNameFileStemMatchesUUIDWorks(t *testing.T) {
	n, err := NewServiceName("fleet/telemetry")
	if err != nil {
		t.Fatalf("NewServiceName: %v", err)
	}
	if n.FileStem() != n.UUID().String() {
		t.Errorf("FileStem() = %q, want %q", n.FileStem(), n.UUID().String())
	}
}
