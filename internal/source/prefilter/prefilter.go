// Package prefilter holds the BPF program that keeps only frames able to
// carry a SOME/IP payload.
package prefilter

import (
	"github.com/go-faster/errors"
	"golang.org/x/net/bpf"
)

// candidateProgram accepts Ethernet frames carrying TCP or UDP over IPv4 or
// IPv6, plus every 802.1Q/802.1ad tagged frame (the decoder sorts those out).
// IPv6 extension headers are not walked.
var candidateProgram = []bpf.Instruction{
	/* 0 */ bpf.LoadAbsolute{Off: 12, Size: 2},
	/* 1 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipTrue: 4},
	/* 2 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86DD, SkipTrue: 6},
	/* 3 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x8100, SkipTrue: 9},
	/* 4 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x88A8, SkipTrue: 8},
	/* 5 */ bpf.RetConstant{Val: 0},
	/* 6 */ bpf.LoadAbsolute{Off: 23, Size: 1},
	/* 7 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipTrue: 5},
	/* 8 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 4, SkipFalse: 3},
	/* 9 */ bpf.LoadAbsolute{Off: 20, Size: 1},
	/* 10 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipTrue: 2},
	/* 11 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 1},
	/* 12 */ bpf.RetConstant{Val: 0},
	/* 13 */ bpf.RetConstant{Val: 0x40000},
}

// Assemble returns the program in kernel form, for sockets that filter in
// the kernel.
func Assemble() ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(candidateProgram)
	if err != nil {
		return nil, errors.Wrap(err, "assemble prefilter")
	}
	return raw, nil
}

// Filter runs the candidate program in the userspace BPF VM.
type Filter struct {
	vm *bpf.VM
}

// NewFilter loads the program into a VM.
func NewFilter() (*Filter, error) {
	if _, err := Assemble(); err != nil {
		return nil, err
	}
	vm, err := bpf.NewVM(candidateProgram)
	if err != nil {
		return nil, errors.Wrap(err, "load prefilter")
	}
	return &Filter{vm: vm}, nil
}

// Match reports whether frame may carry a TCP or UDP payload.
func (f *Filter) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}
