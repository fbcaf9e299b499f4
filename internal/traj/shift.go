package traj

// ShiftVectors left-shifts vs by one entry in place, copying values (never
// slice headers) so that no two entries share storage afterwards. The last
// entry is left as is and therefore duplicated.
func ShiftVectors(vs [][]float64) {
	for k := 0; k+1 < len(vs); k++ {
		copy(vs[k], vs[k+1])
	}
}

// ShiftScalars is ShiftVectors for a flat slice.
func ShiftScalars(vs []float64) {
	if len(vs) > 1 {
		copy(vs, vs[1:])
	}
}
