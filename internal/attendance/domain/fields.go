package domain

// Entity names one of the three source streams.
type Entity string

const (
	EntityPunch  Entity = "punch"
	EntityShift  Entity = "shift"
	EntityDriver Entity = "driver"
)

// Entities lists the source streams in pipeline order.
var Entities = []Entity{EntityPunch, EntityShift, EntityDriver}

// Valid reports whether e is a known entity.
func (e Entity) Valid() bool {
	switch e {
	case EntityPunch, EntityShift, EntityDriver:
		return true
	}
	return false
}

// Field is a stable internal column name.
type Field string

const (
	FieldSeqNo      Field = "seq_no"
	FieldEmployeeID Field = "emp_id"
	FieldAccountID  Field = "account_id"
	FieldName       Field = "name"
	FieldPunchDate  Field = "punch_date"
	FieldPunchTime  Field = "punch_time"
	FieldGateName   Field = "gate_name"
	FieldDirection  Field = "direction"
	FieldShiftClass Field = "shift_class"
	FieldShiftID    Field = "shift_id"
)

var (
	PunchFields = []Field{
		FieldSeqNo, FieldEmployeeID, FieldAccountID, FieldName,
		FieldPunchDate, FieldPunchTime, FieldGateName, FieldDirection,
	}
	ShiftFields = []Field{
		FieldShiftClass, FieldEmployeeID, FieldName, FieldAccountID, FieldShiftID,
	}
	DriverFields = []Field{
		FieldAccountID, FieldEmployeeID, FieldName,
	}
)

// FieldsOf returns the target field enumeration for an entity.
func FieldsOf(e Entity) []Field {
	switch e {
	case EntityPunch:
		return PunchFields
	case EntityShift:
		return ShiftFields
	case EntityDriver:
		return DriverFields
	}
	return nil
}

// HasField reports whether f belongs to the entity's enumeration.
func HasField(e Entity, f Field) bool {
	for _, known := range FieldsOf(e) {
		if known == f {
			return true
		}
	}
	return false
}

// Direction of a gate passage.
type Direction string

const (
	DirectionIn          Direction = "in"
	DirectionOut         Direction = "out"
	DirectionUnspecified Direction = ""
)
