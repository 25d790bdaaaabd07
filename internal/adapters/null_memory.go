package adapters

import "context"

// NullMemory is a no-op MemoryPort: every hand is discarded and every
// profile lookup comes back empty. Used when no opponent-modeling
// backend is configured.
type NullMemory struct{}

func (NullMemory) RecordHand(ctx context.Context, log HandLog) error { return nil }

func (NullMemory) Profile(ctx context.Context, playerID string) (ProfileView, error) {
	return ProfileView{PlayerID: playerID}, nil
}
