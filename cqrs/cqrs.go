// Package cqrs groups the runtime core: commands (command), events (event),
// sagas (saga) and read-side queries (query). The three write-side packages
// share one consistency contract: the command dispatcher checks entity
// versions, forwards events to the event dispatcher, and the saga orchestrator
// drives several commands through it as one unit.
package cqrs
