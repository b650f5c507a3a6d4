package model

// Transform is a player's position and orientation in the open world.
type Transform struct {
	X, Y, Z float64 // position
	H, P, R float64 // heading, pitch, roll
}

// PlayerRecord is one live player's entry in the world registry, keyed by
// the session's world token.
type PlayerRecord struct {
	Username  string
	Aircraft  string
	Transform Transform
}

// Aircraft is a purchasable catalog entry.
type Aircraft struct {
	ID    string
	Price int64
}
