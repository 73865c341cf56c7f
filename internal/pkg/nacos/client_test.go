package nacos

import "testing"

func TestParseServerConfigs(t *testing.T) {
	configs, err := ParseServerConfigs("10.0.0.1:8848, 10.0.0.2:8849")
	if err != nil {
		t.Fatalf("ParseServerConfigs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d configs, want 2", len(configs))
	}
	if configs[1].IpAddr != "10.0.0.2" || configs[1].Port != 8849 {
		t.Fatalf("unexpected second config: %+v", configs[1])
	}
}

func TestParseServerConfigsInvalid(t *testing.T) {
	for _, in := range []string{"", "localhost", "localhost:abc", ":8848"} {
		if _, err := ParseServerConfigs(in); err == nil {
			t.Errorf("ParseServerConfigs(%q): expected error", in)
		}
	}
}
