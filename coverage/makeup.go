// makeup.go - Makeup seat availability for a class occurrence.
//
// A cancelled-out or excused student frees a seat another student can book a
// makeup into. Availability for one template+date is
//
//	available = max(0, capacity - (scheduled - excused) - bookedMakeups)
package coverage

// MakeupAvailability reports the bookable makeup seats on one occurrence.
type MakeupAvailability struct {
	TemplateID TemplateID
	Date       Day
	Capacity   int
	Counts     RosterCounts
	Available  int
}

// AvailableMakeupSeats applies the availability formula.
func AvailableMakeupSeats(capacity int, c RosterCounts) int {
	available := capacity - (c.Scheduled - c.Excused) - c.BookedMakeups
	if available < 0 {
		return 0
	}
	return available
}
