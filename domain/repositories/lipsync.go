package repositories

import (
	"context"
	"encoding/json"
)

// LipSyncExtractor derives phoneme/timing cues from synthesized audio so
// the client avatar can animate its mouth.
type LipSyncExtractor interface {
	Extract(ctx context.Context, wav []byte) (json.RawMessage, error)
}
