package kernels

import "fmt"

// Dim3 is a three-dimensional index or extent, used for block ids, thread ids
// and the dimensions of grids and blocks.
type Dim3 struct {
	X, Y, Z int
}

// D3 builds a Dim3.
func D3(x, y, z int) Dim3 {
	return Dim3{X: x, Y: y, Z: z}
}

// Size returns the number of points covered when d is used as an extent.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Flatten turns an index inside the extent d into a linear key, x-major.
func (d Dim3) Flatten(idx Dim3) int {
	return idx.X + idx.Y*d.X + idx.Z*d.X*d.Y
}

// Unflatten converts a linear key back into an index inside the extent d.
func (d Dim3) Unflatten(linear int) Dim3 {
	plane := d.X * d.Y
	return Dim3{
		X: linear % d.X,
		Y: (linear % plane) / d.X,
		Z: linear / plane,
	}
}

// Contains checks if idx is inside the extent d.
func (d Dim3) Contains(idx Dim3) bool {
	return idx.X >= 0 && idx.X < d.X &&
		idx.Y >= 0 && idx.Y < d.Y &&
		idx.Z >= 0 && idx.Z < d.Z
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z)
}
