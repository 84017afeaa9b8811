/*
 * msim - MIPS R4000 per-hart step loop
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package mips

// StepResult reports what happened during one Step call, mirroring
// internal/riscv.StepResult for the debugger's step/continue commands.
type StepResult struct {
	Trapped  bool
	Cause    Exception
	HitBreak bool
	Retired  bool
}

// Step executes exactly one instruction (or the delay-slot redirect left
// over from the previous one), advancing Count/Compare and servicing a
// pending interrupt if none is already in flight.
//
// Instead of redirecting control the moment a branch is decoded, a taken
// branch only records its target (PCNext) and a branchKind; the
// instruction immediately after it -- already queued as the *next*
// step's PC -- always executes first. Only once that delay-slot
// instruction itself retires does PC become the recorded target. This
// mirrors original_source's instr_bgez, which mutates cpu->pc_next and
// sets cpu->branch rather than cpu->pc directly, leaving the actual
// control transfer to the step loop that runs one cycle later.
func (c *CPU) Step(bus Bus) StepResult {
	defer func() { c.Regs[0] = 0 }()

	c.tickTimer(bus.Now() / 1000)

	if !c.inDelaySlot && c.raiseInterruptIfPending() {
		return StepResult{Trapped: true, Cause: c.pendingCause()}
	}

	pc := c.PC
	phys, ex, ok := c.Translate(pc, IntentFetch)
	if !ok {
		c.raiseException(ex, pc)
		return StepResult{Trapped: true, Cause: ex}
	}
	if pc%4 != 0 {
		c.raiseException(ExcAdEL, pc)
		return StepResult{Trapped: true, Cause: ExcAdEL}
	}

	if bus.CheckPCBreak(uint64(phys)) {
		return StepResult{HitBreak: true}
	}

	instr := bus.Read32(uint64(phys), false)

	wasDelaySlot := c.inDelaySlot
	pendingTarget := c.pendingTarget
	c.branch = branchNone
	c.PCNext = pc + 4

	handler, ok := bus.FetchHandler(uint64(phys))
	if !ok {
		c.raiseException(ExcIBE, pc)
		return StepResult{Trapped: true, Cause: ExcIBE}
	}

	ex = handler(c, bus, instr)
	if ex != ExcNone {
		c.raiseException(ex, pc)
		return StepResult{Trapped: true, Cause: ex}
	}

	switch {
	case c.branch != branchNone:
		// This instruction is a taken branch: the delay slot (PC+4)
		// runs next unconditionally; the redirect to PCNext (the
		// target) is deferred one more step. A branch occupying
		// another branch's delay slot is architecturally undefined on
		// real R4000 hardware; msim resolves it by letting the newer
		// branch's target win, discarding the one it preempts.
		c.pendingTarget = c.PCNext
		c.inDelaySlot = true
		c.PC = pc + 4
	case wasDelaySlot:
		// The delay slot just retired; apply the redirect a prior
		// branch queued up.
		c.inDelaySlot = false
		c.PC = pendingTarget
	default:
		c.PC = c.PCNext
	}

	return StepResult{Retired: true}
}

func (c *CPU) pendingCause() Exception {
	return Exception((c.CP0.Cause & causeExcCodeMask) >> causeExcCodeShift)
}
