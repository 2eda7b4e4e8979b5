package codegen

import "vencc/pkg/compiler"

// BSD syscall numbers live in class 2 on x86-64: 0x2000000 + n.
var mac64ABI = asmABI{
	regs:  regs64,
	entry: "start",
	exit: []string{
		"mov rax, 0x2000001",
		"xor edi, edi",
		"syscall",
	},
	write: []string{
		"mov rax, 0x2000004",
		"mov rdi, rbx",
		"syscall",
		"ret",
	},
	read: []string{
		"mov rax, 0x2000003",
		"xor edi, edi",
		"syscall",
		"ret",
	},
}

// i386 BSD int 0x80 takes its arguments on the stack below a dummy
// return slot.
var mac32ABI = asmABI{
	regs:  regs32,
	entry: "start",
	exit: []string{
		"push 0",
		"sub esp, 4",
		"mov eax, 1",
		"int 0x80",
	},
	write: []string{
		"push edx",
		"push esi",
		"push ebx",
		"sub esp, 4",
		"mov eax, 4",
		"int 0x80",
		"add esp, 16",
		"ret",
	},
	read: []string{
		"push edx",
		"push esi",
		"push 0",
		"sub esp, 4",
		"mov eax, 3",
		"int 0x80",
		"add esp, 16",
		"ret",
	},
}

// Mac64 is NASM for x86-64 macOS. String lengths are assemble-time
// constants and {string} placeholders are written literally.
type Mac64 struct{}

func (Mac64) Target() string    { return "mac64" }
func (Mac64) Extension() string { return ".asm" }

func (Mac64) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, mac64ABI, true)
	sysGen{asmCore: c}.nodes(prog.Nodes)
	return c.assemble("mac64")
}

// Mac32 is NASM for i386 macOS.
type Mac32 struct{}

func (Mac32) Target() string    { return "mac32" }
func (Mac32) Extension() string { return ".asm" }

func (Mac32) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, mac32ABI, true)
	sysGen{asmCore: c}.nodes(prog.Nodes)
	return c.assemble("mac32")
}
