package ingest

import "github.com/Ricou-IA/baikal-ingest/id"

// ID is the primary identifier type for all ingest entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
