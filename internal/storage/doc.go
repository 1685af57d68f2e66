package storage

// Package storage provides a minimal persistence layer for the dispatcher.
//
// It currently holds alert dedup state so restarts do not replay
// recently-sent notifications. Drivers: "file" (snapshot + journal)
// and "sqlite" (build tag sqlite).
