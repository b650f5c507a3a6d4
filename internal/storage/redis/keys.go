package redis

// Key prefixes for Redis storage
const (
	keyPrefix = "skyarena:"
)

func accountKey(username string) string {
	return keyPrefix + "account:" + username
}
