package il

import "fmt"

// Builder grows a Module bottom-up: function-by-function, block-by-block.
// It mirrors the contract of the teacher's ssa.Builder
// (internal/engine/wazevo/ssa/builder.go) generalized from Wasm-only
// lowering to the full Viper opcode set, plus front-end-facing sugar
// (DeclareExtern, InternString) the teacher's single Wasm frontend never
// needed.
type Builder struct {
	Module *Module

	fn      *Function
	cur     *BasicBlock
	varType map[Variable]Type
	nextVar Variable

	internTable map[string]GlobalID
}

// NewBuilder creates a Builder over a fresh, empty Module.
func NewBuilder() *Builder {
	return &Builder{
		Module:      NewModule(),
		varType:     make(map[Variable]Type),
		internTable: make(map[string]GlobalID),
	}
}

// CreateFunction starts a new function: allocates its entry block, binds
// the function's parameters as that entry block's implicit parameters
// (spec.md §3), and adds the function to the module.
func (b *Builder) CreateFunction(name string, sig Signature) *Function {
	f := NewFunction(name, sig)
	b.fn = f
	b.Module.AddFunction(f)

	entry := f.NewBlock("entry")
	f.Params = make([]Param, len(sig.Params))
	for i, pt := range sig.Params {
		t := f.AllocateTemp()
		f.Params[i] = Param{Temp: t, Type: pt}
		// Function parameters are bound as the entry block's own
		// parameter list (spec.md §3: "entry has no parameters other than
		// the function parameters"), so they are defined the same way any
		// other block parameter is: dominance and liveness tracking never
		// need a special case for "this temp came from the signature."
		entry.AddParam(t, pt)
	}
	entry.sealed = true
	b.cur = entry
	return f
}

// CurrentFunction returns the function currently being built.
func (b *Builder) CurrentFunction() *Function { return b.fn }

// CreateBlock allocates a new, initially unsealed block in the current
// function.
func (b *Builder) CreateBlock(label string) *BasicBlock {
	return b.fn.NewBlock(label)
}

// SetBlock directs subsequent Emit* calls to append to blk.
func (b *Builder) SetBlock(blk *BasicBlock) { b.cur = blk }

// CurrentBlock returns the block subsequent Emit* calls append to.
func (b *Builder) CurrentBlock() *BasicBlock { return b.cur }

// Seal declares that every predecessor of blk is now known; AddPred on blk
// is forbidden afterwards. Implements the Braun et al. incomplete-CFG
// algorithm the teacher cites in ssa/builder.go's package doc comment:
// pending "unknown value" placeholders recorded while blk was open are
// resolved into real block parameters here.
func (b *Builder) Seal(blk *BasicBlock) {
	blk.sealed = true
	for variable, phiValue := range blk.unknownValues {
		typ := b.varType[variable]
		blk.AddParam(phiValue.Temp, typ)
		for i := range blk.preds {
			pred := &blk.preds[i]
			v := b.findValue(typ, variable, pred.block)
			pred.branch.addEdgeArg(blk, v)
		}
	}
}

// DeclareVariable reserves a new source-level Variable of the given type,
// used by front ends (and by Mem2Reg) to thread a mutable local through
// block-parameter passing instead of alloca/load/store.
func (b *Builder) DeclareVariable(t Type) Variable {
	v := b.nextVar
	b.nextVar++
	b.varType[v] = t
	return v
}

// DefineVariable records value as variable's current definition within blk.
func (b *Builder) DefineVariable(variable Variable, value Value, blk *BasicBlock) {
	blk.lastDefinitions[variable] = value
}

// DefineVariableInCurrentBlock is DefineVariable(variable, value, CurrentBlock()).
func (b *Builder) DefineVariableInCurrentBlock(variable Variable, value Value) {
	b.DefineVariable(variable, value, b.cur)
}

// FindValue resolves variable's current definition, recursively threading
// block parameters through unsealed or multi-predecessor blocks exactly as
// the teacher's builder.findValue does (ssa/builder.go).
func (b *Builder) FindValue(variable Variable) Value {
	return b.findValue(b.varType[variable], variable, b.cur)
}

func (b *Builder) findValue(typ Type, variable Variable, blk *BasicBlock) Value {
	if v, ok := blk.lastDefinitions[variable]; ok {
		return v
	}
	if !blk.sealed {
		t := b.fn.AllocateTemp()
		v := TempValue(t, typ)
		blk.lastDefinitions[variable] = v
		blk.unknownValues[variable] = v
		return v
	}
	if len(blk.preds) == 1 {
		return b.findValue(typ, variable, blk.preds[0].block)
	}

	t := b.fn.AllocateTemp()
	param := TempValue(t, typ)
	blk.AddParam(t, typ)
	blk.lastDefinitions[variable] = param
	for i := range blk.preds {
		pred := &blk.preds[i]
		v := b.findValue(typ, variable, pred.block)
		pred.branch.addEdgeArg(blk, v)
	}
	return param
}

func (in *Instruction) addEdgeArg(target *BasicBlock, v Value) {
	switch in.Opcode {
	case OpBr:
		if in.Jump.Target == target {
			in.Jump.Args = append(in.Jump.Args, v)
		}
	case OpCBr:
		if in.Then.Target == target {
			in.Then.Args = append(in.Then.Args, v)
		}
		if in.Else.Target == target {
			in.Else.Args = append(in.Else.Args, v)
		}
	case OpSwitch:
		for i := range in.Cases {
			if in.Cases[i].Edge.Target == target {
				in.Cases[i].Edge.Args = append(in.Cases[i].Edge.Args, v)
			}
		}
		if in.Default.Target == target {
			in.Default.Args = append(in.Default.Args, v)
		}
	}
}

// DeclareExtern declares a function implemented in native runtime code,
// resolved at VM load time against the extern registry.
func (b *Builder) DeclareExtern(name string, sig Signature) {
	b.Module.AddExtern(&ExternDecl{Name: name, Sig: sig})
}

// InternString deduplicates a string literal within the module and returns
// its GlobalID, the dedup layer Module.InternString itself does not
// provide.
func (b *Builder) InternString(data []byte) GlobalID {
	key := string(data)
	if id, ok := b.internTable[key]; ok {
		return id
	}
	id := b.Module.InternString(data)
	b.internTable[key] = id
	return id
}

// emit allocates a fresh instruction in the current function's pool and
// appends it to the current block, matching the teacher's
// AllocateInstruction+InsertInstruction split (ssa/builder.go).
func (b *Builder) emit(op Opcode) *Instruction {
	in := b.fn.newInstruction()
	in.Opcode = op
	b.cur.insert(in)
	return in
}

func (b *Builder) bindResult(in *Instruction, typ Type) Value {
	t := b.fn.AllocateTemp()
	in.HasResult = true
	in.ResultTemp = t
	in.ResultType = typ
	return TempValue(t, typ)
}

// EmitBinary appends a two-operand arithmetic/bitwise instruction and
// returns its result.
func (b *Builder) EmitBinary(op Opcode, lhs, rhs Value, resultType Type) Value {
	in := b.emit(op)
	in.Operands = []Value{lhs, rhs}
	return b.bindResult(in, resultType)
}

// EmitICmp appends an integer comparison, always producing I1.
func (b *Builder) EmitICmp(op Opcode, pred CmpPred, lhs, rhs Value) Value {
	in := b.emit(op)
	in.Operands = []Value{lhs, rhs}
	in.Pred = pred
	return b.bindResult(in, TypeI1)
}

// EmitFCmp appends a float ordered/unordered comparison, always producing
// I1 (spec.md §3's FCmpOrd/FCmpUno NaN-aware comparisons), parameterized
// by predicate the same way EmitICmp is.
func (b *Builder) EmitFCmp(op Opcode, pred CmpPred, lhs, rhs Value) Value {
	in := b.emit(op)
	in.Operands = []Value{lhs, rhs}
	in.Pred = pred
	return b.bindResult(in, TypeI1)
}

// EmitCast appends a cast instruction (ZExt/SExt/Trunc/SiToFp/FpToSi/
// Bitcast).
func (b *Builder) EmitCast(op Opcode, v Value, resultType Type) Value {
	in := b.emit(op)
	in.Operands = []Value{v}
	return b.bindResult(in, resultType)
}

// EmitConstI64 materializes an I64-family constant as its own instruction
// (rather than inlining it into every use), matching the style of spec.md
// §8's seed scenario `%a = const_i64 2`. SCCP later folds uses of the
// result back to an inline constant Value where profitable.
func (b *Builder) EmitConstI64(v int64, typ Type) Value {
	in := b.emit(OpConstI64)
	in.Operands = []Value{ConstI64(v, typ)}
	return b.bindResult(in, typ)
}

// EmitConstF64 materializes an F64 constant from its bit pattern.
func (b *Builder) EmitConstF64(bits uint64) Value {
	in := b.emit(OpConstF64)
	in.Operands = []Value{ConstF64Bits(bits)}
	return b.bindResult(in, TypeF64)
}

// EmitConstStr materializes a reference to an interned string literal. The
// result is immortal (spec.md §4.6): its retain/release is a no-op.
func (b *Builder) EmitConstStr(g GlobalID) Value {
	in := b.emit(OpConstStr)
	in.Operands = []Value{ConstStrValue(g)}
	return b.bindResult(in, TypeStr)
}

// EmitGlobalAddr materializes the address of a module global.
func (b *Builder) EmitGlobalAddr(g GlobalID) Value {
	in := b.emit(OpGlobalAddr)
	in.Operands = []Value{GlobalAddrValue(g)}
	return b.bindResult(in, TypePtr)
}

// EmitNullPtr materializes the null pointer constant.
func (b *Builder) EmitNullPtr() Value {
	in := b.emit(OpNullPtr)
	return b.bindResult(in, TypePtr)
}

// EmitAlloca reserves n*sizeof(elem) bytes on the current frame's alloca
// buffer. Per spec.md §3 invariant 6, only entry-block allocas are reliably
// promoted by Mem2Reg.
func (b *Builder) EmitAlloca(elem Type, n int64) Value {
	in := b.emit(OpAlloca)
	in.AllocaType = elem
	in.AllocaSize = n
	return b.bindResult(in, TypePtr)
}

// EmitLoad reads typ from ptr.
func (b *Builder) EmitLoad(typ Type, ptr Value) Value {
	in := b.emit(OpLoad)
	in.Operands = []Value{ptr}
	return b.bindResult(in, typ)
}

// EmitStore writes val to ptr. Store always has a side effect and is never
// removed by DCE even though it produces no result.
func (b *Builder) EmitStore(ptr, val Value) *Instruction {
	in := b.emit(OpStore)
	in.Operands = []Value{ptr, val}
	return in
}

// EmitGEP computes base+offset as a new pointer.
func (b *Builder) EmitGEP(base Value, offset int64) Value {
	in := b.emit(OpGEP)
	in.Operands = []Value{base}
	in.GEPOffset = offset
	return b.bindResult(in, TypePtr)
}

// EmitRetain/EmitRelease are the explicit IL-level pairing of the
// retain/release protocol spec.md §4.1 requires of every Str/Obj-producing
// instruction.
func (b *Builder) EmitRetain(v Value) *Instruction {
	in := b.emit(OpRetain)
	in.Operands = []Value{v}
	return in
}

func (b *Builder) EmitRelease(v Value) *Instruction {
	in := b.emit(OpRelease)
	in.Operands = []Value{v}
	return in
}

// EmitCall resolves callee either against the module's function table or
// (isExtern) the extern registry, matching spec.md §4.5's resolution order.
func (b *Builder) EmitCall(calleeName string, isExtern bool, args []Value, resultType Type) (result Value, in *Instruction) {
	in = b.emit(OpCall)
	in.CalleeName = calleeName
	in.IsExternCall = isExtern
	in.Operands = args
	if resultType == TypeVoid {
		return Value{}, in
	}
	return b.bindResult(in, resultType), in
}

// EmitCallIndirect calls through a function-pointer Value.
func (b *Builder) EmitCallIndirect(fnPtr Value, args []Value, resultType Type) (result Value, in *Instruction) {
	in = b.emit(OpCallIndirect)
	in.Operands = append([]Value{fnPtr}, args...)
	if resultType == TypeVoid {
		return Value{}, in
	}
	return b.bindResult(in, resultType), in
}

// EmitSDivChk0 / EmitIdxChk / EmitCastSiNarrowChk append the checked
// arithmetic/index/cast opcodes, each a terminating trap on precondition
// violation and a pass-through otherwise (spec.md §4.7).
func (b *Builder) EmitSDivChk0(x, divisor Value) Value {
	in := b.emit(OpSDivChk0)
	in.Operands = []Value{x, divisor}
	return b.bindResult(in, TypeI64)
}

func (b *Builder) EmitIdxChk(index, lo, hi Value) Value {
	in := b.emit(OpIdxChk)
	in.Operands = []Value{index, lo, hi}
	return b.bindResult(in, index.Type())
}

func (b *Builder) EmitCastSiNarrowChk(v Value, target Type) Value {
	in := b.emit(OpCastSiNarrowChk)
	in.Operands = []Value{v}
	return b.bindResult(in, target)
}

// EmitEhEntry marks the current block as a landing pad,
// binding the thrown trap's kind and message to two freshly allocated
// temps (I64-encoded kind, Str message), per spec.md §4.7/§6.
func (b *Builder) EmitEhEntry() (kind, msg Value) {
	in := b.emit(OpEhEntry)
	kindT := b.fn.AllocateTemp()
	msgT := b.fn.AllocateTemp()
	in.HasResult = true
	in.ResultTemp = kindT
	in.ResultType = TypeI64
	in.HasResult2 = true
	in.ResultTemp2 = msgT
	in.ResultType2 = TypeStr
	return TempValue(kindT, TypeI64), TempValue(msgT, TypeStr)
}

// Terminators. Each finalizes the current block; callers must SetBlock to
// continue emitting elsewhere.

func (b *Builder) EmitBr(target *BasicBlock, args ...Value) {
	in := b.emit(OpBr)
	in.Jump = Edge{Target: target, Args: args}
	b.cur.finalizeTerminator(in)
}

func (b *Builder) EmitCBr(cond Value, then *BasicBlock, thenArgs []Value, els *BasicBlock, elseArgs []Value) {
	if cond.Type() != TypeI1 {
		panic(fmt.Sprintf("BUG: CBr condition must be i1, got %s", cond.Type()))
	}
	in := b.emit(OpCBr)
	in.Operands = []Value{cond}
	in.Then = Edge{Target: then, Args: thenArgs}
	in.Else = Edge{Target: els, Args: elseArgs}
	b.cur.finalizeTerminator(in)
}

func (b *Builder) EmitSwitch(v Value, cases []SwitchCase, def *BasicBlock, defArgs []Value) {
	in := b.emit(OpSwitch)
	in.Operands = []Value{v}
	in.Cases = cases
	in.Default = Edge{Target: def, Args: defArgs}
	b.cur.finalizeTerminator(in)
}

func (b *Builder) EmitRet(v ...Value) {
	in := b.emit(OpRet)
	in.Operands = v
}

func (b *Builder) EmitTrap(kind TrapKind, msg string) {
	in := b.emit(OpTrap)
	in.TrapKind = kind
	in.TrapMsg = msg
}

func (b *Builder) EmitEhThrow(kind TrapKind, msg string) {
	in := b.emit(OpEhThrow)
	in.TrapKind = kind
	in.TrapMsg = msg
}
