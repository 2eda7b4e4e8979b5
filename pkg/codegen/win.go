package codegen

import "vencc/pkg/compiler"

// STD_INPUT_HANDLE, STD_OUTPUT_HANDLE and STD_ERROR_HANDLE are -10, -11
// and -12. Both ABIs keep the byte count of the last call in
// ven_io_count.

// Win64 fastcall: rcx, rdx, r8, r9, then [rsp+32] above the shadow space.
var win64ABI = asmABI{
	regs:  regs64,
	entry: "mainCRTStartup",
	header: []string{
		"extern GetStdHandle",
		"extern WriteFile",
		"extern ReadFile",
		"extern ExitProcess",
	},
	prologue: []string{"sub rsp, 40"},
	exit: []string{
		"xor ecx, ecx",
		"call ExitProcess",
	},
	write: []string{
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 48",
		"mov [rbp - 8], rdx",
		"mov rcx, -11",
		"cmp rbx, 2",
		"jne .handle",
		"mov rcx, -12",
		".handle:",
		"call GetStdHandle",
		"mov rcx, rax",
		"mov rdx, rsi",
		"mov r8, [rbp - 8]",
		"lea r9, [ven_io_count]",
		"mov qword [rsp + 32], 0",
		"call WriteFile",
		"leave",
		"ret",
	},
	read: []string{
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 48",
		"mov [rbp - 8], rdx",
		"mov rcx, -10",
		"call GetStdHandle",
		"mov rcx, rax",
		"mov rdx, rsi",
		"mov r8, [rbp - 8]",
		"lea r9, [ven_io_count]",
		"mov qword [rsp + 32], 0",
		"call ReadFile",
		"mov eax, [ven_io_count]",
		"leave",
		"ret",
	},
	bss: []string{"ven_io_count resd 1"},
}

// Win32 stdcall: arguments pushed right to left, decorated _Name@bytes.
var win32ABI = asmABI{
	regs:  regs32,
	entry: "_mainCRTStartup",
	header: []string{
		"extern _GetStdHandle@4",
		"extern _WriteFile@20",
		"extern _ReadFile@20",
		"extern _ExitProcess@4",
	},
	exit: []string{
		"push 0",
		"call _ExitProcess@4",
	},
	write: []string{
		"push edx",
		"mov eax, -11",
		"cmp ebx, 2",
		"jne .handle",
		"mov eax, -12",
		".handle:",
		"push eax",
		"call _GetStdHandle@4",
		"pop edx",
		"push 0",
		"push ven_io_count",
		"push edx",
		"push esi",
		"push eax",
		"call _WriteFile@20",
		"ret",
	},
	read: []string{
		"push edx",
		"push -10",
		"call _GetStdHandle@4",
		"pop edx",
		"push 0",
		"push ven_io_count",
		"push edx",
		"push esi",
		"push eax",
		"call _ReadFile@20",
		"mov eax, [ven_io_count]",
		"ret",
	},
	bss: []string{"ven_io_count resd 1"},
}

// Win64 is NASM for x64 Windows linked against kernel32.
type Win64 struct{}

func (Win64) Target() string    { return "win64" }
func (Win64) Extension() string { return ".asm" }

func (Win64) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, win64ABI, true)
	sysGen{asmCore: c}.nodes(prog.Nodes)
	return c.assemble("win64")
}

// Win32 is NASM for x86 Windows linked against kernel32.
type Win32 struct{}

func (Win32) Target() string    { return "win32" }
func (Win32) Extension() string { return ".asm" }

func (Win32) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, win32ABI, true)
	sysGen{asmCore: c}.nodes(prog.Nodes)
	return c.assemble("win32")
}
