package il

import "fmt"

// Temp is a virtual register id, unique within the function that defines it.
// A Temp is produced by at most one instruction.
type Temp uint32

func (t Temp) String() string { return fmt.Sprintf("%%t%d", uint32(t)) }

// GlobalID identifies a Global within a Module (a string literal, or any
// other module-level constant datum).
type GlobalID uint32

// FnID identifies a Function within a Module.
type FnID uint32

// ValueKind discriminates the Value union.
type ValueKind byte

const (
	ValueInvalid ValueKind = iota
	ValueTemp
	ValueConstI64
	ValueConstF64
	ValueConstStr
	ValueGlobalAddr
	ValueNullPtr
)

// Value is a tagged union: the operand of an instruction. Temps are produced
// by exactly one instruction; constants and globals are materialized inline.
type Value struct {
	Kind     ValueKind
	Temp     Temp
	I64      int64
	F64Bits  uint64 // bit pattern of a float64, per spec.md's ConstF64(u64 bit-pattern)
	Global   GlobalID
	typ      Type
}

func TempValue(t Temp, typ Type) Value   { return Value{Kind: ValueTemp, Temp: t, typ: typ} }
func ConstI64(v int64, typ Type) Value   { return Value{Kind: ValueConstI64, I64: v, typ: typ} }
func ConstF64Bits(bits uint64) Value     { return Value{Kind: ValueConstF64, F64Bits: bits, typ: TypeF64} }
func ConstStrValue(g GlobalID) Value     { return Value{Kind: ValueConstStr, Global: g, typ: TypeStr} }
func GlobalAddrValue(g GlobalID) Value   { return Value{Kind: ValueGlobalAddr, Global: g, typ: TypePtr} }
func NullPtrValue() Value                { return Value{Kind: ValueNullPtr, typ: TypePtr} }

// Type returns the static type of the value.
func (v Value) Type() Type { return v.typ }

// Valid reports whether v was ever assigned (the zero Value is invalid).
func (v Value) Valid() bool { return v.Kind != ValueInvalid }

func (v Value) String() string {
	switch v.Kind {
	case ValueTemp:
		return v.Temp.String()
	case ValueConstI64:
		return fmt.Sprintf("%d", v.I64)
	case ValueConstF64:
		return fmt.Sprintf("f64bits(0x%x)", v.F64Bits)
	case ValueConstStr:
		return fmt.Sprintf("@g%d", uint32(v.Global))
	case ValueGlobalAddr:
		return fmt.Sprintf("addr(@g%d)", uint32(v.Global))
	case ValueNullPtr:
		return "null"
	}
	return "<invalid>"
}
