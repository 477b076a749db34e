package schema

// SchemaVersion is the current audit record schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of a record stored in the WAL.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventConfigCommit
	EventTrigger
	EventNotification
	EventBookUpdate
	EventStrategyDecision
)

func (t EventType) String() string {
	switch t {
	case EventConfigCommit:
		return "config_commit"
	case EventTrigger:
		return "trigger"
	case EventNotification:
		return "notification"
	case EventBookUpdate:
		return "book_update"
	case EventStrategyDecision:
		return "strategy_decision"
	default:
		return "unknown"
	}
}

// EventHeader is the common metadata attached to every record.
// Source carries the ModuleID of the emitting component.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source ModuleID, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  uint16(source),
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
