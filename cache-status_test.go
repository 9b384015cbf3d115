package zastepstwa

import "testing"

func TestCacheStatusString(t *testing.T) {
	hit := CacheStatus{TimeToLive: 120}
	hit.Hit()
	if s := hit.String(); s != "Zastepstwa; hit; ttl=120" {
		t.Fatalf("Hit is %s", s)
	}

	miss := CacheStatus{Stored: true}
	miss.Forward(CacheStatusFwdUriMiss)
	if s := miss.String(); s != "Zastepstwa; fwd=uri-miss; stored" {
		t.Fatalf("Miss is %s", s)
	}

	stale := CacheStatus{}
	stale.Forward(CacheStatusFwdStale)
	if s := stale.String(); s != "Zastepstwa; fwd=stale" {
		t.Fatalf("Stale is %s", s)
	}
}
