// Package circuit produces the OpenQASM 3 programs submitted by the sweeps.
//
// Circuits are opaque to the rest of qrun: the execution engine and the
// runtime client only carry Source through to the remote service, which
// transpiles it for the selected backend.
package circuit

import (
	"fmt"
	"strings"
)

// Circuit is a named OpenQASM 3 program.
type Circuit struct {
	Name      string
	NumQubits int
	Source    string
}

type builder struct {
	sb strings.Builder
	nq int
}

func newBuilder(nq int) *builder {
	b := &builder{nq: nq}
	b.sb.WriteString("OPENQASM 3.0;\n")
	b.sb.WriteString("include \"stdgates.inc\";\n")
	fmt.Fprintf(&b.sb, "qubit[%d] q;\n", nq)
	fmt.Fprintf(&b.sb, "bit[%d] c;\n", nq)
	return b
}

func (b *builder) h(q int)       { fmt.Fprintf(&b.sb, "h q[%d];\n", q) }
func (b *builder) cx(c, t int)   { fmt.Fprintf(&b.sb, "cx q[%d], q[%d];\n", c, t) }
func (b *builder) barrier()      { b.sb.WriteString("barrier q;\n") }
func (b *builder) measure(q int) { fmt.Fprintf(&b.sb, "c[%d] = measure q[%d];\n", q, q) }

func (b *builder) measureAll() {
	for i := 0; i < b.nq; i++ {
		b.measure(i)
	}
}

func (b *builder) build(name string) Circuit {
	return Circuit{Name: name, NumQubits: b.nq, Source: b.sb.String()}
}

// Bell prepares and measures a two-qubit Bell pair. An ideal device only
// ever reports "00" or "11".
func Bell() Circuit {
	b := newBuilder(2)
	b.h(0)
	b.cx(0, 1)
	b.measureAll()
	return b.build("bell")
}

// DepthLadder entangles three qubits with depthPairs rounds of CX(0,1) CX(1,2).
// Larger depthPairs gives a deeper, noisier circuit.
func DepthLadder(depthPairs int) Circuit {
	b := newBuilder(3)
	b.h(0)
	for i := 0; i < depthPairs; i++ {
		b.cx(0, 1)
		b.cx(1, 2)
	}
	b.measureAll()
	return b.build(fmt.Sprintf("ladder_%d", depthPairs))
}

// RepeatedBell is a Bell pair followed by reps-1 extra H/CX blocks, each
// separated by a barrier. reps below 1 is treated as 1.
func RepeatedBell(reps int) Circuit {
	if reps < 1 {
		reps = 1
	}
	b := newBuilder(2)
	b.h(0)
	b.cx(0, 1)
	b.measureAll()
	for i := 0; i < reps-1; i++ {
		b.barrier()
		b.h(0)
		b.cx(0, 1)
	}
	return b.build(fmt.Sprintf("bell_x%d", reps))
}
