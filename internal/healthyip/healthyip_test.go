package healthyip

import "testing"

func TestNewNormalizesEquality(t *testing.T) {
	a := New("192.168.001.001", 8080)
	b := New("192.168.1.1", 8080)
	if a != b {
		t.Fatalf("expected normalized construction to compare equal: %+v != %+v", a, b)
	}
}

func TestWithHealthImmutable(t *testing.T) {
	a := New("10.0.0.1", 80)
	b := a.WithHealth(true)

	if a.IsHealthy {
		t.Fatalf("original HealthyIp should remain unhealthy")
	}
	if !b.IsHealthy {
		t.Fatalf("updated copy should be healthy")
	}
}

func TestRecordAnyHealthyAndStrings(t *testing.T) {
	r := HealthyRecord{
		Subdomain: "www.example.com.",
		HealthyIPs: []HealthyIp{
			New("1.1.1.1", 80).WithHealth(true),
			New("2.2.2.2", 80).WithHealth(false),
		},
	}

	if !r.AnyHealthy() {
		t.Fatalf("expected at least one healthy IP")
	}
	got := r.HealthyIPStrings()
	if len(got) != 1 || got[0] != "1.1.1.1" {
		t.Fatalf("HealthyIPStrings() = %v, want [1.1.1.1]", got)
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	r := HealthyRecord{Subdomain: "www.example.com.", HealthyIPs: []HealthyIp{New("1.1.1.1", 80)}}
	clone := r.Clone()
	clone.HealthyIPs[0] = clone.HealthyIPs[0].WithHealth(true)

	if r.HealthyIPs[0].IsHealthy {
		t.Fatalf("mutating clone's IP slice must not affect original")
	}
}
