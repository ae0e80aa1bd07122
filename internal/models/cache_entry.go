package models

import "time"

// CacheEntry is a key/value row used when Redis is not configured. It backs rate
// limiting counters and the optional shared study session store.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
