package domain

import "time"

type Member struct {
	ID        int64      `json:"id"`
	FullName  *string    `json:"full_name"`
	NIC       string     `json:"nic"`
	Phone     *string    `json:"phone"`
	Address   *string    `json:"address"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
