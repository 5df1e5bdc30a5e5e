package runtime

// Intrinsics holds the runtime implementation of every word the IR lowers
// to Call("__NAME") instead of a dedicated opcode (ir.intrinsicNames):
// dynamically-indexed stack shuffles, value-conditional operators, and
// the return-stack words the closed opcode set has no instruction for.
// The reference interpreter and the native backend's generated code
// dispatch to these by the same "__NAME" symbol. The C backend does not
// use this table; it emits its own C implementation of the same
// intrinsics (roth_call_intrinsic).
var Intrinsics = map[string]func(*Context) error{
	"__PICK":     intrinsicPick,
	"__ROLL":     intrinsicRoll,
	"__QDUP":     intrinsicDupIfNonzero,
	"__2SWAP":    intrinsic2Swap,
	"__2OVER":    intrinsic2Over,
	"__SLASHMOD": intrinsicSlashMod,
	"__ABS":      intrinsicAbs,
	"__MIN":      intrinsicMin,
	"__MAX":      intrinsicMax,
	"__TOR":      intrinsicToR,
	"__FROMR":    intrinsicFromR,
	"__RFETCH":   intrinsicRFetch,
}

func underflow(op string) error { return &StackUnderflow{Op: op} }

// intrinsicPick implements "n PICK": push a copy of the item n positions
// below the (already popped) index.
func intrinsicPick(c *Context) error {
	n, err := Pop(c, "PICK")
	if err != nil {
		return err
	}
	v, err := c.Data.Peek(int(n))
	if err != nil {
		return underflow("PICK")
	}
	return Push(c, v)
}

// intrinsicRoll implements "n ROLL": remove the item n positions below
// the top and push it back on top.
func intrinsicRoll(c *Context) error {
	n, err := Pop(c, "ROLL")
	if err != nil {
		return err
	}
	v, err := c.Data.Remove(int(n))
	if err != nil {
		return underflow("ROLL")
	}
	return Push(c, v)
}

// intrinsicDupIfNonzero implements "?DUP": duplicate the top only if it
// is non-zero.
func intrinsicDupIfNonzero(c *Context) error {
	v, err := c.Data.Peek(0)
	if err != nil {
		return underflow("?DUP")
	}
	if v == 0 {
		return nil
	}
	return Push(c, v)
}

func intrinsic2Swap(c *Context) error {
	d, err := popN(c, 4, "2SWAP")
	if err != nil {
		return err
	}
	// d is bottom-to-top: [a b c d] -> want [c d a b]
	return pushAll(c, d[2], d[3], d[0], d[1])
}

func intrinsic2Over(c *Context) error {
	d, err := popN(c, 4, "2OVER")
	if err != nil {
		return err
	}
	// [a b c d] -> [a b c d a b]
	return pushAll(c, d[0], d[1], d[2], d[3], d[0], d[1])
}

func intrinsicSlashMod(c *Context) error {
	b, a, err := pop2(c, "/MOD")
	if err != nil {
		return err
	}
	if b == 0 {
		return &DivisionByZero{}
	}
	return pushAll(c, a%b, a/b)
}

func intrinsicAbs(c *Context) error {
	v, err := Pop(c, "ABS")
	if err != nil {
		return err
	}
	if v < 0 {
		v = -v
	}
	return Push(c, v)
}

func intrinsicMin(c *Context) error {
	b, a, err := pop2(c, "MIN")
	if err != nil {
		return err
	}
	if a < b {
		return Push(c, a)
	}
	return Push(c, b)
}

func intrinsicMax(c *Context) error {
	b, a, err := pop2(c, "MAX")
	if err != nil {
		return err
	}
	if a > b {
		return Push(c, a)
	}
	return Push(c, b)
}

func intrinsicToR(c *Context) error {
	v, err := Pop(c, ">R")
	if err != nil {
		return err
	}
	if err := c.Return.Push(v); err != nil {
		return err
	}
	return nil
}

func intrinsicFromR(c *Context) error {
	v, err := c.Return.Pop()
	if err != nil {
		return &ReturnStackUnderflow{}
	}
	return Push(c, v)
}

func intrinsicRFetch(c *Context) error {
	v, err := c.Return.Peek(0)
	if err != nil {
		return &ReturnStackUnderflow{}
	}
	return Push(c, v)
}

// popN pops count values off the data stack and returns them bottom-to-
// top (so d[len(d)-1] is what was on top).
func popN(c *Context, count int, op string) ([]int64, error) {
	out := make([]int64, count)
	for i := count - 1; i >= 0; i-- {
		v, err := Pop(c, op)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func pushAll(c *Context, vs ...int64) error {
	for _, v := range vs {
		if err := Push(c, v); err != nil {
			return err
		}
	}
	return nil
}
