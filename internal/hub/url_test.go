package hub

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"192.168.1.20", "http://192.168.1.20/api/", false},
		{"remote.lan:8080", "http://remote.lan:8080/api/", false},
		{"http://remote.lan", "http://remote.lan/api/", false},
		{"http://remote.lan/", "http://remote.lan/api/", false},
		{"https://remote.lan/api", "https://remote.lan/api/", false},
		{"http://remote.lan/api/", "http://remote.lan/api/", false},
		{"  http://remote.lan/api/?x=1 ", "http://remote.lan/api/", false},
		{"", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfiguratorURL(t *testing.T) {
	got, err := ConfiguratorURL("http://remote.lan:8080/api/")
	if err != nil {
		t.Fatalf("ConfiguratorURL() error = %v", err)
	}
	if got != "http://remote.lan:8080/configurator/" {
		t.Errorf("ConfiguratorURL() = %q", got)
	}
	if h := HostOf("http://remote.lan:8080/api/"); h != "remote.lan" {
		t.Errorf("HostOf() = %q", h)
	}
}
