package app

import "sync"

type avatarKey struct {
	room     string
	clientID string
}

// AvatarCache keeps the last processed avatar per (room, client), so
// a reconnecting client with the same clientId shows up with its old
// picture without re-uploading.
type AvatarCache struct {
	mu sync.RWMutex
	m  map[avatarKey][]byte
}

func NewAvatarCache() *AvatarCache {
	return &AvatarCache{m: make(map[avatarKey][]byte)}
}

func (c *AvatarCache) Get(room, clientID string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[avatarKey{room, clientID}]
}

func (c *AvatarCache) Put(room, clientID string, data []byte) {
	c.mu.Lock()
	c.m[avatarKey{room, clientID}] = data
	c.mu.Unlock()
}
