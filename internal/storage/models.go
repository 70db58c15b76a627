// Package storage is the optional Postgres write-through mirror (§10.5).
// The authoritative game state always lives in gamestore.Store; this
// package only ever receives already-decided facts via controller.Observer
// and records them for history/audit/reconnect-after-restart.
package storage

import (
	"time"

	"gorm.io/datatypes"
)

// GameRecord mirrors one Game aggregate. Snapshot holds the full JSON
// projection (§10.5 "a JSON snapshot column is sufficient; this system has
// no query surface over individual player rows that would justify a fully
// normalized schema a finer-grained minigame history would need).
type GameRecord struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    string         `gorm:"size:36;uniqueIndex;not null"`
	Code      string         `gorm:"size:12;uniqueIndex;not null"`
	Phase     string         `gorm:"size:32;not null"`
	Snapshot  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	Events    []EventRecord
}

// EventRecord mirrors one published eventbus.Event, keyed by the journal's
// own sequence number so replay-after-restart can resume from where a
// reconnecting client last acked.
type EventRecord struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	Sequence  uint64         `gorm:"index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Scope     string         `gorm:"size:16;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
