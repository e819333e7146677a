// Package param implements sample-accurate automation for scalar node
// parameters.
//
// A Param holds a current value and a time-ordered list of linear ramp
// events. The control goroutine schedules events with SetValue and RampTo;
// the render goroutine evaluates one block of values at a time with Eval or
// EvalBlock. Scheduling takes the bound lock (normally the graph context
// mutex), which the render goroutine already holds while evaluating.
package param
