// Package workflow holds the state of a pm-copilot session.
//
// The [Store] owns the ordered step list and the current selection. Every
// step carries a [status.Status] and a [Data] value: a statically typed
// [Record] of the step's answers plus the last successful orchestration
// result. Writes to a step are merges; a [Patch] only replaces what it names.
//
// Key types:
//   - [Store] is the injectable state service; construct it with [New]
//   - [Step] is one pipeline step as seen by readers
//   - [State] is an immutable snapshot delivered to subscribers
//   - [Record] is the sealed per-kind answer record, e.g. [IdeaIntake]
//
// Mutations are published synchronously to subscribers in the order they
// were applied.
package workflow
