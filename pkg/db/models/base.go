package models

import "github.com/google/uuid"

// assignID fills a primary key that the caller left empty. Ids are generated
// in Go so inserts behave the same on Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
