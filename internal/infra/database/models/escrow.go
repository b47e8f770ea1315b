package models

import (
	"time"
)

type EscrowAccount struct {
	ID                string    `json:"id" gorm:"primaryKey;type:char(26)"`
	Payer             string    `json:"payer" gorm:"type:text;index"`
	ManuscriptRef     string    `json:"manuscriptRef" gorm:"type:text;index"`
	Amount            int64     `json:"amount" gorm:"type:bigint;not null"`
	RequiredApprovals int       `json:"requiredApprovals" gorm:"type:integer;not null"`
	State             string    `json:"state" gorm:"type:text;not null;default:'created'"`
	CDate             time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate             time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type EscrowApproval struct {
	EscrowID string        `json:"escrowID" gorm:"primaryKey;type:char(26)"`
	Escrow   EscrowAccount `json:"-" gorm:"foreignKey:EscrowID;references:ID;constraint:OnDelete:CASCADE;"`
	Approver string        `json:"approver" gorm:"primaryKey;type:text"`
	CDate    time.Time     `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
