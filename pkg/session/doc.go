/*
Package session serializes access to persisted trees.

A Manager wraps a ports.TreeStore with a per-tree mutex (reference counted so
idle entries are dropped) and an optional ports.DistributedLocker for replicas
sharing one backend. Loading never fails on missing or unreadable state: the
caller receives an empty tree and the problem is logged.
*/
package session
