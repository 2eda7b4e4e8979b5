package codegen

import "vencc/pkg/compiler"

var linux64ABI = asmABI{
	regs:  regs64,
	entry: "_start",
	exit: []string{
		"mov rax, 60",
		"xor edi, edi",
		"syscall",
	},
	write: []string{
		"mov rax, 1",
		"mov rdi, rbx",
		"syscall",
		"ret",
	},
	read: []string{
		"xor eax, eax",
		"xor edi, edi",
		"syscall",
		"ret",
	},
}

// i386 int 0x80: eax = number, then ebx, ecx, edx.
var linux32ABI = asmABI{
	regs:  regs32,
	entry: "_start",
	exit: []string{
		"mov eax, 1",
		"xor ebx, ebx",
		"int 0x80",
	},
	write: []string{
		"mov ecx, esi",
		"mov eax, 4",
		"int 0x80",
		"ret",
	},
	read: []string{
		"push ebx",
		"mov ecx, esi",
		"xor ebx, ebx",
		"mov eax, 3",
		"int 0x80",
		"pop ebx",
		"ret",
	},
}

// Linux64 is NASM for x86-64 Linux using the syscall instruction.
type Linux64 struct{}

func (Linux64) Target() string    { return "l64" }
func (Linux64) Extension() string { return ".asm" }

func (Linux64) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, linux64ABI, false)
	sysGen{asmCore: c, stringVars: true}.nodes(prog.Nodes)
	return c.assemble("l64")
}

// Linux32 is NASM for i386 Linux using int 0x80.
type Linux32 struct{}

func (Linux32) Target() string    { return "l32" }
func (Linux32) Extension() string { return ".asm" }

func (Linux32) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, linux32ABI, false)
	sysGen{asmCore: c, stringVars: true}.nodes(prog.Nodes)
	return c.assemble("l32")
}
