package math

// Segment is a line segment between two endpoints.
type Segment struct {
	A, B Vec3
}

// ClosestPoint returns the point on the segment nearest to q.
// A degenerate segment (A == B) returns A.
func (s Segment) ClosestPoint(q Vec3) Vec3 {
	ab := s.B.Sub(s.A)
	lenSq := ab.LengthSq()
	if lenSq == 0 {
		return s.A
	}

	t := q.Sub(s.A).Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.A.Add(ab.Scale(t))
}

// DistanceSq returns the squared distance from q to the segment.
func (s Segment) DistanceSq(q Vec3) float32 {
	return q.DistanceSq(s.ClosestPoint(q))
}

// Length returns the segment length.
func (s Segment) Length() float32 {
	return s.A.Distance(s.B)
}
