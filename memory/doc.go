// Package memory holds the conversation state for one query.
//
// Model:
//   - Transcript: append-only, ordered turns (user / assistant / tool).
//   - One Transcript per query; nothing survives across queries or restarts.
//   - Invariant: every assistant tool request is answered by exactly one
//     tool result with the same correlation ID before the transcript is
//     sent back to the model. Unanswered() checks this.
package memory
