package particle

// Pack builds a packed RGBA colour, red in the high byte.
func Pack(r, g, b, a uint8) uint32 {
	return uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
}

// Unpack splits a packed RGBA colour into its channels.
func Unpack(c uint32) (r, g, b, a uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Floats writes the normalised channels of c into dst[0:4].
func Floats(c uint32, dst []float32) {
	r, g, b, a := Unpack(c)
	dst[0] = float32(r) / 255
	dst[1] = float32(g) / 255
	dst[2] = float32(b) / 255
	dst[3] = float32(a) / 255
}
