package model

import "time"

// Group represents a row in the `groups` table.  Users belong to exactly one
// group and moderators act only inside their own.
type Group struct {
    ID        string    `json:"id"`
    Name      string    `json:"name"`
    CreatedAt time.Time `json:"created_at"`
}
