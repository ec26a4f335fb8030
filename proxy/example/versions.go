package example

const v1ABI = `[
	{"type":"function","name":"Initialize","inputs":[],"outputs":[]},
	{"type":"function","name":"Terminate","inputs":[],"outputs":[]},
	{"type":"function","name":"version","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setX","inputs":[{"name":"x","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setY","inputs":[{"name":"y","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getX","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getY","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getProd","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const v2ABI = `[
	{"type":"function","name":"Initialize","inputs":[],"outputs":[]},
	{"type":"function","name":"Terminate","inputs":[],"outputs":[]},
	{"type":"function","name":"version","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setX","inputs":[{"name":"x","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setY","inputs":[{"name":"y","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setZ","inputs":[{"name":"z","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getX","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getY","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getZ","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getProd","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// NewV1 returns an implementation storing x and y, getProd is x*y.
func NewV1() *Implementation {
	impl := newImplementation(v1ABI, 1)
	impl.handlers["getProd"] = product(slotX, slotY)
	return impl
}

// NewV2 extends V1 with an admin-only z, getProd is x*y*z.
func NewV2() *Implementation {
	impl := newImplementation(v2ABI, 2)
	impl.handlers["setZ"] = adminSetter(slotZ)
	impl.handlers["getZ"] = getter(slotZ)
	impl.handlers["getProd"] = product(slotX, slotY, slotZ)
	return impl
}
