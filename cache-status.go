package zastepstwa

import (
	"fmt"
)

// cacheName identifies this cache in the Cache-Status header.
const cacheName = "Zastepstwa"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain a file for the date.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"

	// The cache contained a file for the date, but it was stale.
	CacheStatusFwdStale CacheStatusFwdReason = "stale"
)

// CacheStatus is the RFC 9211 Cache-Status entry for a served artifact.
type CacheStatus struct {
	Status    CacheStatusStatus
	FwdReason CacheStatusFwdReason
	// Stored is true when the response was written to the cache.
	Stored bool
	// TimeToLive is the remaining freshness in seconds.
	TimeToLive int
}

func (cs *CacheStatus) Hit() {
	cs.Status = CacheStatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.Status = CacheStatusFwd
	cs.FwdReason = reason
}

func (cs CacheStatus) String() string {
	status := cacheName
	if cs.Status == CacheStatusHit {
		status += "; hit"
	} else if cs.FwdReason != "" {
		status = fmt.Sprintf("%s; fwd=%s", status, cs.FwdReason)
	}
	if cs.Stored {
		status += "; stored"
	}
	if cs.TimeToLive > 0 {
		status = fmt.Sprintf("%s; ttl=%d", status, cs.TimeToLive)
	}
	return status
}
