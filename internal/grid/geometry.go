package grid

// Geometry places an event on a vertical time axis, in pixels.
type Geometry struct {
	Offset float64 `json:"offset"`
	Length float64 `json:"length"`
}

// Layout describes the time axis of day and week views.
type Layout struct {
	DayStartHour  int
	PixelsPerHour float64
	MinSlotPixels float64
}

// DefaultLayout matches the schedule screen: 07:00 top row, 60px per hour.
func DefaultLayout() Layout {
	return Layout{
		DayStartHour:  7,
		PixelsPerHour: 60,
		MinSlotPixels: DefaultMinSlotPixels,
	}
}

// Geometry computes the offset from the top of the axis and the slot
// length. The length never drops below MinSlotPixels, which also covers
// end times before the start time.
func (l Layout) Geometry(startTime, endTime string) (Geometry, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Geometry{}, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return Geometry{}, err
	}

	offset := float64(start-l.DayStartHour*60) / 60 * l.PixelsPerHour
	length := float64(end-start) / 60 * l.PixelsPerHour
	if length < l.MinSlotPixels {
		length = l.MinSlotPixels
	}
	return Geometry{Offset: offset, Length: length}, nil
}

// SlotGeometry is Layout.Geometry with the default minimum slot height.
func SlotGeometry(startTime, endTime string, dayStartHour int, pixelsPerHour float64) (Geometry, error) {
	l := Layout{
		DayStartHour:  dayStartHour,
		PixelsPerHour: pixelsPerHour,
		MinSlotPixels: DefaultMinSlotPixels,
	}
	return l.Geometry(startTime, endTime)
}
