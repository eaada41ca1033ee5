package resources

// Type identifies one kind of resource unit. The set is closed: stations and
// agents only ever move units of these types, one unit at a time.
type Type string

const (
	Stone   Type = "STONE"
	Wood    Type = "WOOD"
	Iron    Type = "IRON"
	Clay    Type = "CLAY"
	Crystal Type = "CRYSTAL"
)

// All returns the resource types in catalog order.
func All() []Type {
	return []Type{Stone, Wood, Iron, Clay, Crystal}
}

func Valid(t Type) bool {
	switch t {
	case Stone, Wood, Iron, Clay, Crystal:
		return true
	}
	return false
}
