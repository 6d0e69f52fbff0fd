package realtime

import "fmt"

func copyField(dst *EntityState, src EntityState, field string) {
	switch field {
	case FieldOwner:
		dst.OwnerID = src.OwnerID
	case FieldName:
		dst.Name = src.Name
	case FieldDescription:
		dst.Description = src.Description
	case FieldKind:
		dst.Kind = src.Kind
	case FieldPriority:
		dst.Priority = src.Priority
	case FieldPoints:
		dst.Points = src.Points
	case FieldPosition:
		dst.Position = src.Position
	case FieldCompleted:
		dst.Completed = src.Completed
	case FieldSeenBy:
		dst.SeenBy = append([]string(nil), src.SeenBy...)
	case FieldTrackerStatus:
		dst.TrackerStatus = src.TrackerStatus
	}
}

func fieldValue(e EntityState, field string) any {
	switch field {
	case FieldName:
		return e.Name
	case FieldDescription:
		return e.Description
	case FieldKind:
		return e.Kind
	case FieldPriority:
		return e.Priority
	case FieldPoints:
		return e.Points
	default:
		return nil
	}
}

// setField applies a locally editable field. Numeric values may arrive as
// float64 after a JSON round trip.
func setField(e *EntityState, field string, value any) error {
	switch field {
	case FieldName, FieldDescription, FieldKind, FieldPriority:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", field)
		}
		switch field {
		case FieldName:
			e.Name = s
		case FieldDescription:
			e.Description = s
		case FieldKind:
			e.Kind = s
		case FieldPriority:
			e.Priority = s
		}
	case FieldPoints:
		switch v := value.(type) {
		case int:
			e.Points = v
		case float64:
			e.Points = int(v)
		default:
			return fmt.Errorf("points must be a number")
		}
	default:
		return fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}
	return nil
}
