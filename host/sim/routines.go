package sim

import "github.com/prodzpod/Hacknet-Pathfinder/bytecode"

// ---------------------------------------------------------------------------
// Stock routines
// ---------------------------------------------------------------------------

// routine assembles one stock routine.
type routine struct {
	m *bytecode.Method
	b *bytecode.Builder
}

func newRoutine(name string, arity, numTemps int) *routine {
	return &routine{
		m: &bytecode.Method{Name: name, Arity: arity, NumTemps: numTemps},
		b: bytecode.NewBuilder(),
	}
}

func (r *routine) lit(v any) uint16 {
	return uint16(r.m.AddLiteral(v))
}

func (r *routine) temp(n byte) { r.b.EmitByte(bytecode.OpPushTemp, n) }

func (r *routine) store(n byte) { r.b.EmitByte(bytecode.OpStoreTemp, n) }

func (r *routine) small(v int8) { r.b.EmitInt8(bytecode.OpPushInt8, v) }

func (r *routine) op(code bytecode.Opcode) { r.b.Emit(code) }

func (r *routine) literal(v any) {
	r.b.EmitUint16(bytecode.OpPushLiteral, r.lit(v))
}

func (r *routine) field(name string) {
	r.b.EmitUint16(bytecode.OpPushField, r.lit(name))
}

func (r *routine) global(name string) {
	r.b.EmitUint16(bytecode.OpPushGlobal, r.lit(name))
}

func (r *routine) send(selector string, argc uint8) {
	r.b.EmitSend(r.lit(selector), argc)
}

func (r *routine) done() *bytecode.Method {
	r.m.Code = r.b.Bytes()
	return r.m
}

// stockRoutines returns the routines the host ships with.
func stockRoutines() []*bytecode.Method {
	return []*bytecode.Method{
		programsExecute(),
		osUpdate(),
		osDraw(),
		osLaunchExecutable(),
		loadFile(),
		optionsMenuDraw(),
		mainMenuDraw(),
	}
}

// programsExecute lists the executables in the bin folder:
//
//	execute(args, os)  temps: 2 folder, 3 i, 4 file
func programsExecute() *bytecode.Method {
	r := newRoutine("Programs.execute", 2, 5)
	loop, next, end := r.b.NewLabel(), r.b.NewLabel(), r.b.NewLabel()

	r.temp(1)
	r.literal("Available Executables:\n")
	r.send("write:", 1)
	r.op(bytecode.OpPOP)

	// folder := os.thisComputer.files.root.folders[2]
	r.temp(1)
	r.field("thisComputer")
	r.field("files")
	r.field("root")
	r.field("folders")
	r.small(2)
	r.op(bytecode.OpSendAt)
	r.store(2)

	r.small(0)
	r.store(3)
	r.b.Mark(loop)
	r.temp(3)
	r.temp(2)
	r.field("files")
	r.op(bytecode.OpSendSize)
	r.op(bytecode.OpSendLT)
	r.b.EmitJump(bytecode.OpJumpFalse, end)

	r.temp(2)
	r.field("files")
	r.temp(3)
	r.op(bytecode.OpSendAt)
	r.store(4)
	r.global("Programs")
	r.temp(4)
	r.field("data")
	r.send("isBuiltinData:", 1)
	r.b.EmitJump(bytecode.OpJumpFalse, next)
	r.temp(1)
	r.temp(4)
	r.field("name")
	r.literal(".exe")
	r.literal("")
	r.send("replace:with:", 2)
	r.send("write:", 1)
	r.op(bytecode.OpPOP)

	r.b.Mark(next)
	r.temp(3)
	r.small(1)
	r.op(bytecode.OpSendPlus)
	r.store(3)
	r.b.EmitJump(bytecode.OpJump, loop)

	r.b.Mark(end)
	r.temp(1)
	r.literal(" ")
	r.send("write:", 1)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}

// osUpdate ticks every live program and removes the ones exiting:
//
//	update(dt)  temps: 1 i, 2 exe
func osUpdate() *bytecode.Method {
	r := newRoutine("OS.update", 1, 3)
	loop, next, end := r.b.NewLabel(), r.b.NewLabel(), r.b.NewLabel()

	r.small(0)
	r.store(1)
	r.b.Mark(loop)
	r.temp(1)
	r.op(bytecode.OpPushSelf)
	r.field("exes")
	r.op(bytecode.OpSendSize)
	r.op(bytecode.OpSendLT)
	r.b.EmitJump(bytecode.OpJumpFalse, end)

	r.op(bytecode.OpPushSelf)
	r.field("exes")
	r.temp(1)
	r.op(bytecode.OpSendAt)
	r.store(2)
	r.temp(2)
	r.temp(0)
	r.send("update:", 1)
	r.op(bytecode.OpPOP)
	r.temp(2)
	r.send("isExiting", 0)
	r.b.EmitJump(bytecode.OpJumpFalse, next)

	r.op(bytecode.OpNOP)
	r.op(bytecode.OpPushSelf)
	r.field("exes")
	r.temp(1)
	r.send("removeAt:", 1)
	r.op(bytecode.OpPOP)
	r.temp(1)
	r.small(1)
	r.op(bytecode.OpSendMinus)
	r.store(1)

	r.b.Mark(next)
	r.temp(1)
	r.small(1)
	r.op(bytecode.OpSendPlus)
	r.store(1)
	r.b.EmitJump(bytecode.OpJump, loop)

	r.b.Mark(end)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}

// osDraw draws every live program:
//
//	draw(dt)  temps: 1 i
func osDraw() *bytecode.Method {
	r := newRoutine("OS.draw", 1, 2)
	loop, end := r.b.NewLabel(), r.b.NewLabel()

	r.small(0)
	r.store(1)
	r.b.Mark(loop)
	r.temp(1)
	r.op(bytecode.OpPushSelf)
	r.field("exes")
	r.op(bytecode.OpSendSize)
	r.op(bytecode.OpSendLT)
	r.b.EmitJump(bytecode.OpJumpFalse, end)

	r.op(bytecode.OpPushSelf)
	r.field("exes")
	r.temp(1)
	r.op(bytecode.OpSendAt)
	r.temp(0)
	r.send("draw:", 1)
	r.op(bytecode.OpPOP)
	r.temp(1)
	r.small(1)
	r.op(bytecode.OpSendPlus)
	r.store(1)
	r.b.EmitJump(bytecode.OpJump, loop)

	r.b.Mark(end)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}

// osLaunchExecutable runs a program from the session's bin folder and
// answers whether something ran:
//
//	launchExecutable(name, args)  temps: 2 file, 3 data
func osLaunchExecutable() *bytecode.Method {
	r := newRoutine("OS.launchExecutable", 2, 4)
	notFound := r.b.NewLabel()

	r.op(bytecode.OpPushSelf)
	r.field("thisComputer")
	r.field("files")
	r.field("root")
	r.literal("bin")
	r.send("searchForFolder:", 1)
	r.temp(0)
	r.literal(".exe")
	r.op(bytecode.OpSendPlus)
	r.send("searchForFile:", 1)
	r.store(2)
	r.temp(2)
	r.b.EmitJump(bytecode.OpJumpNil, notFound)

	r.temp(2)
	r.field("data")
	r.store(3)
	r.global("Programs")
	r.temp(3)
	r.send("isBuiltinData:", 1)
	r.b.EmitJump(bytecode.OpJumpFalse, notFound)
	r.op(bytecode.OpPushSelf)
	r.temp(3)
	r.temp(1)
	r.send("launchBuiltin:args:", 2)
	r.op(bytecode.OpReturnTop)

	r.b.Mark(notFound)
	r.op(bytecode.OpPushSelf)
	r.literal("Program not found")
	r.send("write:", 1)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpPushFalse)
	r.op(bytecode.OpReturnTop)
	return r.done()
}

// loadFile stores a file read from content data:
//
//	loadFile(folder, name, data)
func loadFile() *bytecode.Method {
	r := newRoutine("ComputerLoader.loadFile", 3, 3)
	r.temp(0)
	r.temp(1)
	r.temp(2)
	r.send("addFile:data:", 2)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}

func optionsMenuDraw() *bytecode.Method {
	r := newRoutine("OptionsMenu.draw", 0, 0)
	r.global("GuiData")
	r.send("startDraw", 0)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpPushSelf)
	r.send("drawOptions", 0)
	r.op(bytecode.OpPOP)
	r.global("GuiData")
	r.send("endDraw", 0)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}

func mainMenuDraw() *bytecode.Method {
	r := newRoutine("MainMenu.draw", 1, 1)
	r.global("GuiData")
	r.send("startDraw", 0)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpPushSelf)
	r.send("drawButtons", 0)
	r.op(bytecode.OpPOP)
	r.global("GuiData")
	r.send("endDraw", 0)
	r.op(bytecode.OpPOP)
	r.op(bytecode.OpReturnSelf)
	return r.done()
}
