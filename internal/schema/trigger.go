package schema

// TriggerArgCount is the number of argument slots of a trigger command.
const TriggerArgCount = 5

// TriggerCommand asks the order entry engine to fire a collection.
// ValidMask bit i marks Args[i] as meaningful; set bits are contiguous from bit 0.
type TriggerCommand struct {
	CollectionID uint16
	ValidMask    uint8
	Args         [TriggerArgCount]Uint128
}

// ArgCount returns the number of valid arguments.
func (c TriggerCommand) ArgCount() int {
	n := 0
	for i := 0; i < TriggerArgCount; i++ {
		if c.ValidMask&(1<<i) != 0 {
			n++
		}
	}
	return n
}
