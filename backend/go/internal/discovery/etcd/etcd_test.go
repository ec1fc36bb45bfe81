package etcd

import "testing"

func TestServiceKey(t *testing.T) {
	if got := ServiceKey("ingest-service", "10.0.0.5:8080"); got != "/repochat/services/ingest-service/10.0.0.5:8080" {
		t.Errorf("unexpected key %q", got)
	}
	if got := ServiceKey("/ingest-service/", ""); got != "/repochat/services/ingest-service/" {
		t.Errorf("discovery prefix must end with a slash, got %q", got)
	}
}
