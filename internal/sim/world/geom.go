package world

// Vec2i is a position on the world's integer grid.
type Vec2i struct{ X, Z int }

// dist is the Chebyshev distance: one step per tick, diagonals allowed.
func dist(a, b Vec2i) int {
	dx := abs(a.X - b.X)
	dz := abs(a.Z - b.Z)
	if dx > dz {
		return dx
	}
	return dz
}

func inRange(center, p Vec2i, radius int) bool {
	return dist(center, p) <= radius
}

// stepToward moves one grid step from a toward b.
func stepToward(a, b Vec2i) Vec2i {
	return Vec2i{X: a.X + sign(b.X-a.X), Z: a.Z + sign(b.Z-a.Z)}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
