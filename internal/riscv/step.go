/*
 * msim - per-hart step loop (C7)
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

package riscv

// StepResult reports what happened during one Step call, for the
// debugger's stepping/tracing commands.
type StepResult struct {
	Trapped    bool
	Cause      Exception
	HitBreak   bool
	Retired    bool
}

// Step executes exactly one instruction, or services one pending
// interrupt if the hart is halted in WFI, advancing all the per-cycle
// accounting exactly once either way (original_source's rv_cpu_step,
// spec.md section 4.7's eight numbered steps). x0 is re-zeroed and
// tval_next cleared at the end of every call regardless of outcome.
func (c *CPU) Step(bus Bus) StepResult {
	defer func() {
		c.Regs[0] = 0
		c.CSR.TvalNext = 0
	}()

	c.raiseTimerInterrupts()

	if c.Standby {
		if c.tryHandleInterrupt() {
			c.Standby = false
			c.finishStep()
			c.account(false)
			return StepResult{Trapped: true, Cause: c.pendingCause()}
		}
		c.account(false)
		return StepResult{}
	}

	phys, ex := c.Translate(bus, c.PC, IntentFetch, true)
	if ex == ExcNone && c.PC%4 != 0 {
		ex = ExcInstrAddrMisaligned
		c.CSR.TvalNext = c.PC
	}
	if ex != ExcNone {
		c.handleException(ex, c.CSR.TvalNext)
		c.finishStep()
		c.account(false)
		return StepResult{Trapped: true, Cause: ex}
	}

	if bus.CheckPCBreak(phys) {
		return StepResult{HitBreak: true}
	}

	instr := bus.Read32(phys, false)

	c.branchKind = branchNone
	c.PCNext = c.PC + 4

	handler, ok := bus.FetchHandler(phys)
	if !ok {
		c.handleException(ExcInstrAccessFault, c.PC)
		c.finishStep()
		c.account(false)
		return StepResult{Trapped: true, Cause: ExcInstrAccessFault}
	}

	ex = handler(c, bus, instr)
	if ex != ExcNone {
		c.handleException(ex, c.CSR.TvalNext)
		c.finishStep()
		c.account(false)
		return StepResult{Trapped: true, Cause: ex}
	}

	c.finishStep()
	c.account(true)

	if c.tryHandleInterrupt() {
		return StepResult{Trapped: true, Cause: c.pendingCause(), Retired: true}
	}
	return StepResult{Retired: true}
}

// finishStep advances the program counter; handlers that branch or trap
// have already redirected PCNext, so the common case just falls through.
func (c *CPU) finishStep() {
	c.PC = c.PCNext
}

func (c *CPU) pendingCause() Exception {
	if c.Priv == PrivMachine {
		return c.CSR.Mcause
	}
	return c.CSR.Scause
}
