package models

import (
	"time"
)

type Identifier struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	Prefix      string    `json:"prefix" gorm:"type:text;index;uniqueIndex:uniq_identifier_code,priority:1"`
	Suffix      string    `json:"suffix" gorm:"type:text;uniqueIndex:uniq_identifier_code,priority:2"`
	Kind        string    `json:"kind" gorm:"type:text;index"`
	Owner       string    `json:"owner" gorm:"type:text;index"`
	Status      string    `json:"status" gorm:"type:text;not null;default:'pending'"`
	Meta        string    `json:"meta" gorm:"type:json;default:'{}'"`
	MetadataRef string    `json:"metadataRef" gorm:"type:text"`
	ChainRef    *string   `json:"chainRef" gorm:"type:text"`
	Policy      *string   `json:"policy" gorm:"type:text"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate       time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Namespace holds the per-prefix allocation counter. The row is locked
// for the duration of a suffix allocation so concurrent registrations
// under the same prefix serialize.
type Namespace struct {
	Prefix    string `json:"prefix" gorm:"primaryKey;type:text"`
	NextValue int64  `json:"nextValue" gorm:"type:bigint;not null;default:0"`
}

type ResolutionEvent struct {
	ID           string    `json:"id" gorm:"primaryKey;type:char(26)"`
	IdentifierID string    `json:"identifierID" gorm:"type:text;index"`
	Requester    string    `json:"requester" gorm:"type:text"`
	CDate        time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
